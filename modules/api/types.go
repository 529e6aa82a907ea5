package api

import "github.com/Dongkey-Dev/chat-app/domain/chat"

// CreateRoomRequest is the API request to create a room.
type CreateRoomRequest struct {
	Title string `json:"title"`
}

// CreateRoomResponse is returned once a room is created.
type CreateRoomResponse struct {
	Message string `json:"message"`
	Room    string `json:"room"`
}

// HistoryResponse is the API response for message history.
type HistoryResponse struct {
	RoomID   string         `json:"room_id"`
	Messages []chat.Message `json:"messages"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
