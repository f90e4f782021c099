// Package exception defines the JSON error body returned by the HTTP API.
package exception

import (
	"fmt"
	"strings"
)

// CustomError is serialized as the response body of a failed request.
// Message may reference Params as $name.
type CustomError struct {
	Status  int                    `json:"status"`
	Code    string                 `json:"code,omitempty"`
	Message string                 `json:"message,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Debug   string                 `json:"debug,omitempty"`
}

func (c CustomError) Error() string {
	msg := c.Message
	for k, v := range c.Params {
		msg = strings.ReplaceAll(msg, "$"+k, fmt.Sprintf("%v", v))
	}
	return msg
}

const InternalServerError = "1"
const InternalServerErrorMsg = "$msg"

const InvalidURLEscape = "6"
const InvalidURLEscapeMsg = "Failed to unescape parameter $param"

const InvalidParameterValue = "9"
const InvalidParameterValueMsg = "Value '$value' is not allowed for parameter $param"

const BadRequestBody = "10"
const BadRequestBodyMsg = "Failed to decode body"

const MethodNotAllowed = "11"
const MethodNotAllowedMsg = "Method Not Allowed"

const ValidationFailed = "20"
const ValidationFailedMsg = "Validation failed for $entity"

const ReviewerNotFound = "100"
const ReviewerNotFoundMsg = "No reviewer found with this email"

const FetchFailed = "500"

const UpstreamUnavailable = "501"
const UpstreamUnavailableMsg = "REDCap is unavailable: $error"

const UpstreamTimeout = "502"
const UpstreamTimeoutMsg = "REDCap request timed out"

const ExportFailed = "600"
const ExportFailedMsg = "Failed to build export"

const MirrorUnavailable = "700"
const MirrorUnavailableMsg = "Mirror store is unavailable"
