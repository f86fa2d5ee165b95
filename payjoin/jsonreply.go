package payjoin

import "encoding/json"

// JSONReply is the wire shape of a replyable error, as delivered to the sender through the
// directory (spec.md section 6).
type JSONReply struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

// NewJSONReply builds the reply for a ReplyableError.
func NewJSONReply(err *ReplyableError) JSONReply {
	return JSONReply{ErrorCode: err.Code, Message: err.Message}
}

// Marshal serializes the reply to the JSON body the directory stores for the sender to fetch.
func (r JSONReply) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
