package handler

import (
	"github.com/labstack/echo/v4"
)

// Envelope is the body of every API response, success or failure.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// Respond writes a successful envelope. A nil data is rendered as {}.
func Respond(c echo.Context, status int, message string, data any) error {
	if data == nil {
		data = struct{}{}
	}
	return c.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

// Failure builds the envelope of an error response.
func Failure(message string) Envelope {
	return Envelope{Success: false, Message: message, Data: struct{}{}}
}
