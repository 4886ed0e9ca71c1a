package realtime

import "encoding/json"

// Envelope is the outbound JSON object carrying an event, keyed by a "type"
// discriminator. The producer (Registry or Presence) builds the envelope;
// Session only ever writes the resulting bytes.
type Envelope map[string]interface{}

func (e Envelope) bytes() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		// A map of JSON-marshalable primitives cannot fail to encode;
		// surfacing an empty error frame is safer than panicking a pump.
		return []byte(`{"type":"error","message":"internal encoding error"}`)
	}
	return data
}

func errorFrame(message string) Envelope {
	return Envelope{"type": "error", "message": message}
}

func authOk(userID int64) Envelope {
	return Envelope{"type": "auth_ok", "user_id": userID}
}

func subscribed(chatID int64) Envelope {
	return Envelope{"type": "subscribed", "chat_id": chatID}
}

func pong() Envelope {
	return Envelope{"type": "pong"}
}

func typingEnvelope(userID int64, username string) Envelope {
	return Envelope{"type": "typing", "user_id": userID, "username": username}
}

// MessageCreated builds the "message" envelope for POST message.
func MessageCreated(id, chatID, senderID int64, content *string, mtype string, createdAt string, replyTo *int64) Envelope {
	e := Envelope{
		"type": "message", "id": id, "chat_id": chatID, "sender_id": senderID,
		"content": content, "message_type": mtype, "created_at": createdAt,
	}
	if replyTo != nil {
		e["reply_to_message_id"] = *replyTo
	}
	return e
}

func MessageUpdated(messageID int64, content string, updatedAt string) Envelope {
	return Envelope{"type": "message_updated", "message_id": messageID, "content": content, "updated_at": updatedAt}
}

func MessageDeleted(messageID, deletedBy int64) Envelope {
	return Envelope{"type": "message_deleted", "message_id": messageID, "deleted_by": deletedBy, "for_everyone": true}
}

func MessagePinned(messageID, pinnedBy int64, message interface{}) Envelope {
	return Envelope{"type": "message_pinned", "message_id": messageID, "pinned_by": pinnedBy, "message": message}
}

func MessageUnpinned(messageID int64) Envelope {
	return Envelope{"type": "message_unpinned", "message_id": messageID}
}

func ReactionEvent(messageID, userID int64, emoji, action string) Envelope {
	return Envelope{"type": "reaction", "message_id": messageID, "user_id": userID, "emoji": emoji, "action": action}
}

func ReadReceipt(userID, lastReadMsgID int64) Envelope {
	return Envelope{"type": "read_receipt", "user_id": userID, "last_read_msg_id": lastReadMsgID}
}

func ChatMemberJoined(chatID, userID int64) Envelope {
	return Envelope{"type": "chat_member_joined", "chat_id": chatID, "user_id": userID}
}

func ChatCreated(chat interface{}) Envelope {
	return Envelope{"type": "chat_created", "chat": chat}
}

func ChatUpdated(chatID int64, changed map[string]interface{}) Envelope {
	e := Envelope{"type": "chat_updated", "chat_id": chatID}
	for k, v := range changed {
		e[k] = v
	}
	return e
}

func ChatDeleted(chatID, deletedBy int64) Envelope {
	return Envelope{"type": "chat_deleted", "chat_id": chatID, "deleted_by": deletedBy}
}

// PresenceFull is the envelope sent to admin/self viewers and to everyone
// when visibility=everyone.
func PresenceFull(userID int64, status string) Envelope {
	return Envelope{"type": "presence", "user_id": userID, "status": status}
}

// PresenceApprox is the envelope sent to non-admin, non-self viewers when
// visibility=approx_only.
func PresenceApprox(userID int64, bucket string) Envelope {
	return Envelope{"type": "presence", "user_id": userID, "privacy": "approx_only", "last_seen_bucket": bucket}
}
