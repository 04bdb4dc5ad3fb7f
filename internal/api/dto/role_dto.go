package dto

// RoleResponse names a role.
type RoleResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RoleAssignmentResponse is one user's role in a theatre.
type RoleAssignmentResponse struct {
	UserID string `json:"user_id"`
	RoleID string `json:"theatre_role_id"`
	Role   string `json:"role"`
}

// RoleChangeRequest is one entry of a role update batch.
type RoleChangeRequest struct {
	Action string `json:"action"`
	UserID string `json:"user_id"`
	RoleID string `json:"theatre_role_id"`
}

// UpdateRolesRequest payload.
type UpdateRolesRequest struct {
	Changes []RoleChangeRequest `json:"changes"`
}
