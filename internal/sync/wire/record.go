// Package wire defines the records exchanged between a site and the
// central server.
package wire

import (
	"encoding/json"
	"fmt"

	"sitesync/internal/core/apperror"
)

// Action is the mutation a record carries.
type Action string

const (
	ActionUpsert Action = "UPSERT"
	ActionDelete Action = "DELETE"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a == ActionUpsert || a == ActionDelete
}

// Record is one changed row on the wire. Data is owned by the translator of
// TableName and is opaque to everything else.
type Record struct {
	TableName string          `json:"table_name"`
	RecordID  string          `json:"record_id"`
	Action    Action          `json:"action"`
	Data      json.RawMessage `json:"data,omitempty"`

	// Cursor is the position of the record in the stream it was read from:
	// the changelog cursor on push, the central server cursor on pull.
	Cursor int64 `json:"cursor,omitempty"`

	// Routing keys used by the central server to pick destination sites
	StoreID string `json:"store_id,omitempty"`
	NameID  string `json:"name_id,omitempty"`

	// SourceSiteID is the site where the change originated
	SourceSiteID string `json:"source_site_id,omitempty"`
}

// Validate checks the envelope. The payload is validated by translators.
func (r Record) Validate() error {
	if r.TableName == "" {
		return apperror.NewValidation("table_name is required")
	}
	if r.RecordID == "" {
		return apperror.NewValidation("record_id is required").
			WithDetail("table", r.TableName)
	}
	if !r.Action.Valid() {
		return apperror.NewValidation(fmt.Sprintf("unknown action %q", r.Action)).
			WithDetail("table", r.TableName).
			WithDetail("record_id", r.RecordID)
	}
	return nil
}

// Key identifies the row a record refers to.
func (r Record) Key() string {
	return r.TableName + "/" + r.RecordID
}

// PushRequest is the body of a push call.
type PushRequest struct {
	Records []Record `json:"records"`
}

// PushResponse acknowledges a push. AckCursor is the highest changelog
// cursor of the site the server has durably accepted.
type PushResponse struct {
	AckCursor int64 `json:"ack_cursor"`
}

// PullResponse is a page of records addressed to the pulling site.
// Cursor is the server position to pass as since on the next pull.
type PullResponse struct {
	Records []Record `json:"records"`
	Cursor  int64    `json:"cursor"`
}

// Encode marshals a translator payload.
func Encode(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return b, nil
}

// Decode unmarshals a record payload into v. Failures are translation errors.
func Decode(r Record, v any) error {
	if len(r.Data) == 0 {
		return apperror.NewTranslation(r.TableName, r.RecordID, "empty payload")
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return apperror.NewTranslation(r.TableName, r.RecordID, "malformed payload").WithCause(err)
	}
	return nil
}
