package models

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// JsonNullString wraps sql.NullString so nullable columns marshal as a JSON string or null.
type JsonNullString struct {
	sql.NullString
}

// NewJsonNullString returns a valid JsonNullString unless s is empty.
func NewJsonNullString(s string) JsonNullString {
	return JsonNullString{NullString: sql.NullString{String: s, Valid: s != ""}}
}

// MarshalJSON implements json.Marshaler.
func (jns JsonNullString) MarshalJSON() ([]byte, error) {
	if !jns.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(jns.String)
}

// UnmarshalJSON implements json.Unmarshaler.
func (jns *JsonNullString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		jns.String, jns.Valid = "", false
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		jns.String, jns.Valid = "", false
		return fmt.Errorf("JsonNullString: expected JSON string or null, got '%s': %w", string(data), err)
	}
	jns.String, jns.Valid = s, true
	return nil
}

// JsonNullInt64 is the integer counterpart of JsonNullString, used for score columns.
type JsonNullInt64 struct {
	sql.NullInt64
}

// MarshalJSON implements json.Marshaler.
func (jni JsonNullInt64) MarshalJSON() ([]byte, error) {
	if !jni.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(jni.Int64)
}

// JsonNullBool is the boolean counterpart of JsonNullString.
type JsonNullBool struct {
	sql.NullBool
}

// MarshalJSON implements json.Marshaler.
func (jnb JsonNullBool) MarshalJSON() ([]byte, error) {
	if !jnb.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(jnb.Bool)
}

// JsonNullTime is the time counterpart of JsonNullString.
type JsonNullTime struct {
	sql.NullTime
}

// MarshalJSON implements json.Marshaler.
func (jnt JsonNullTime) MarshalJSON() ([]byte, error) {
	if !jnt.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(jnt.Time)
}

// UnmarshalJSON implements json.Unmarshaler.
func (jni *JsonNullInt64) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		jni.Int64, jni.Valid = 0, false
		return nil
	}
	if err := json.Unmarshal(data, &jni.Int64); err != nil {
		jni.Valid = false
		return fmt.Errorf("JsonNullInt64: expected JSON number or null, got '%s': %w", string(data), err)
	}
	jni.Valid = true
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (jnb *JsonNullBool) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		jnb.Bool, jnb.Valid = false, false
		return nil
	}
	if err := json.Unmarshal(data, &jnb.Bool); err != nil {
		jnb.Valid = false
		return fmt.Errorf("JsonNullBool: expected JSON boolean or null, got '%s': %w", string(data), err)
	}
	jnb.Valid = true
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (jnt *JsonNullTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		jnt.Time, jnt.Valid = time.Time{}, false
		return nil
	}
	if err := json.Unmarshal(data, &jnt.Time); err != nil {
		jnt.Valid = false
		return fmt.Errorf("JsonNullTime: expected RFC 3339 string or null, got '%s': %w", string(data), err)
	}
	jnt.Valid = true
	return nil
}
