// Package rundb records pipeline runs and the files they write to a
// ClickHouse database.
package rundb

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Connection wraps one ClickHouse connection plus the channel its
// message-handling goroutine reads from.
type Connection struct {
	conn     clickhouse.Conn
	err      error
	runEntry *RunMessage
	filemsg  chan *FileMessage
	sync.WaitGroup
}

const databaseName = "redmonster" // official SQL name of the database

func (db *Connection) IsConnected() bool {
	return (db != nil) && (db.conn != nil) && (db.err == nil)
}

func PingServer() error {
	db := createConnection()
	if !db.IsConnected() {
		return fmt.Errorf("database is not connected")
	}
	v, err := db.conn.ServerVersion()
	if err != nil {
		return err
	}
	fmt.Printf("ClickHouse server is alive. Version:\n%s\n", v)
	db.conn.Close()
	return nil
}

// StartConnection opens the database, records the run entry, and starts
// the goroutine that stores file messages until abort closes.
func StartConnection(run *RunMessage, abort <-chan struct{}) *Connection {
	conn := createConnection()
	conn.runEntry = run
	conn.logRun()
	go conn.handleConnection(abort)
	return conn
}

// DummyConnection returns an unconnected Connection, for runs that do
// not record provenance.
func DummyConnection() *Connection {
	db := &Connection{}
	db.Add(1)
	return db
}

func createConnection() *Connection {
	db := &Connection{}
	dbUser := os.Getenv("REDMONSTER_DB_USER")
	dbPass := os.Getenv("REDMONSTER_DB_PASSWORD")
	auth := clickhouse.Auth{
		Database: databaseName,
		Username: dbUser,
		Password: dbPass,
	}
	client := clickhouse.ClientInfo{
		Products: []struct {
			Name    string
			Version string
		}{
			{Name: "redmonster", Version: "unknown"},
		},
	}
	opt :=
		clickhouse.Options{
			Addr:       []string{"localhost:9000"},
			Auth:       auth,
			ClientInfo: client,
			TLS:        nil,
		}
	ctx := context.Background()
	conn, err := clickhouse.Open(&opt)
	if err != nil {
		db.err = err
		return db
	}
	db.conn = conn
	db.Add(1)

	// Ping the server at the DB connection.
	if err = conn.Ping(ctx); err != nil {
		if exception, ok := err.(*clickhouse.Exception); ok {
			fmt.Printf("Exception [%d] %s \n%s\n", exception.Code, exception.Message, exception.StackTrace)
		}
		db.err = err
		return db
	}

	db.filemsg = make(chan *FileMessage)
	return db
}

func (db *Connection) logRun() {
	if !db.IsConnected() {
		return
	}
	ctx := context.Background()
	const nowait = false
	re := db.runEntry
	formattedStart := re.Start.Format("2006-01-02 15:04:05.000000")
	formattedEnd := re.End.Format("2006-01-02 15:04:05.000000")
	if err := db.conn.AsyncInsert(ctx, `INSERT INTO pipelineruns VALUES (?, ?, ?, ?, ?, ?, ?)`, nowait,
		re.ID, re.Hostname, re.Githash, re.Version,
		re.GoVersion, formattedStart, formattedEnd,
	); err != nil {
		fmt.Println("Error raised on AsyncInsert into pipelineruns ", err)
		db.err = err
	}
}

func (db *Connection) handleConnection(abort <-chan struct{}) {
	defer db.Done()
	for {
		select {
		case <-abort:
			db.Disconnect()
			return
		case fmsg := <-db.filemsg:
			db.handleFileMessage(fmsg)
		}
	}
}

// Disconnect rewrites the run entry with its end time.
func (db *Connection) Disconnect() {
	if db.IsConnected() {
		db.runEntry.End = time.Now()
		db.logRun()
	}
}

// RecordFile takes a FileMessage and stores it in the DB (if it's open).
func (db *Connection) RecordFile(msg *FileMessage) {
	if !db.IsConnected() || msg == nil {
		return
	}
	go func() { db.filemsg <- msg }()
}

func (db *Connection) handleFileMessage(m *FileMessage) {
	if !db.IsConnected() {
		return
	}
	ctx := context.Background()
	const nowait = false
	formattedWritten := m.Written.Format("2006-01-02 15:04:05.000000")
	if err := db.conn.AsyncInsert(ctx, `INSERT INTO files VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, nowait,
		m.ID, db.runEntry.ID, m.Plate, m.MJD, m.Filename, m.Filetype,
		m.Nfibers, formattedWritten,
	); err != nil {
		fmt.Println("Error raised on AsyncInsert into files ", err)
		db.err = err
	}
}
