package domain

// TokenKind separates the trust domains of signed tokens. Each kind is
// signed with its own secret and carries its kind as a tag.
type TokenKind string

const (
	TokenKindUser   TokenKind = "User"
	TokenKindEmail  TokenKind = "Email"
	TokenKindTicket TokenKind = "Ticket"
)

// Valid reports whether k is a known token kind.
func (k TokenKind) Valid() bool {
	switch k {
	case TokenKindUser, TokenKindEmail, TokenKindTicket:
		return true
	}
	return false
}
