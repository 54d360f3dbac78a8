// Package errors provides the error taxonomy shared by notifykit channels and
// the publisher.
package errors

// ErrorCode identifies the class of a NotifyError.
type ErrorCode string

const (
	// CodeChannelConfig marks a channel whose configuration is missing a
	// required field or carries an out-of-domain value. Raised only while the
	// channel is being constructed.
	CodeChannelConfig ErrorCode = "CHANNEL_CONFIG"

	// CodeChannelDelivery marks a send attempt rejected by the transport:
	// network failure, non-2xx status or an error payload from the backend.
	CodeChannelDelivery ErrorCode = "CHANNEL_DELIVERY"

	// CodeUnknownChannel marks a settings key that names no registered channel.
	CodeUnknownChannel ErrorCode = "UNKNOWN_CHANNEL"

	// CodeInvalidSettings marks settings documents that cannot be decoded.
	CodeInvalidSettings ErrorCode = "INVALID_SETTINGS"
)

// ErrorCodeInfo describes an error code.
type ErrorCodeInfo struct {
	Code        ErrorCode `json:"code"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
}

var errorCodeInfoMap = map[ErrorCode]ErrorCodeInfo{
	CodeChannelConfig: {
		Code: CodeChannelConfig, Category: "configuration",
		Description: "Channel configuration is missing or invalid",
	},
	CodeChannelDelivery: {
		Code: CodeChannelDelivery, Category: "delivery",
		Description: "Channel transport reported a failed delivery",
	},
	CodeUnknownChannel: {
		Code: CodeUnknownChannel, Category: "configuration",
		Description: "Settings name a channel that is not registered",
	},
	CodeInvalidSettings: {
		Code: CodeInvalidSettings, Category: "configuration",
		Description: "Settings document could not be decoded",
	},
}

// GetErrorCodeInfo returns information about an error code.
func GetErrorCodeInfo(code ErrorCode) ErrorCodeInfo {
	info, exists := errorCodeInfoMap[code]
	if !exists {
		return ErrorCodeInfo{Code: code, Category: "unknown", Description: "Unknown error code"}
	}
	return info
}

// GetCategory returns the category of an error code.
func GetCategory(code ErrorCode) string {
	return GetErrorCodeInfo(code).Category
}
