package rundb

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// The composite types used for messages to the ClickHouse database.

// NewID returns a lexically sortable unique ID for a database row.
func NewID() string {
	return ulid.Make().String()
}

// RunMessage is the information for the pipelineruns table.
type RunMessage struct {
	ID        string
	Hostname  string
	Githash   string
	Version   string
	GoVersion string
	Start     time.Time
	End       time.Time
}

// FileMessage is the information required to make an entry in the files table.
type FileMessage struct {
	ID       string
	Plate    int
	MJD      int
	Filename string
	Filetype string // "fiber", "plate" or "ndArch"
	Nfibers  int
	Written  time.Time
}
