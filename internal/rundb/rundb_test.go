package rundb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewID(t *testing.T) {
	a := NewID()
	b := NewID()
	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
}

func TestDummyConnection(t *testing.T) {
	db := DummyConnection()
	assert.False(t, db.IsConnected())
	// Recording against a dummy or nil connection must be a no-op.
	db.RecordFile(&FileMessage{ID: NewID(), Filename: "redmonster-7338-56660.fits"})
	var nildb *Connection
	assert.False(t, nildb.IsConnected())
	nildb.RecordFile(&FileMessage{})
	nildb.Disconnect()
}
