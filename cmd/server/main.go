package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"kitedb/graphdb"
)

const (
	defaultPageSize       = 4096
	defaultBufferCapacity = 100
)

// response is the wire shape of one reply: a single JSON object per line
type response struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// server owns the open databases. The engine is single-writer, so one mutex
// serializes all engine access across connections.
type server struct {
	fs     afero.Fs
	dbDir  string
	logger *logrus.Logger

	mu        deadlock.Mutex
	databases map[string]*graphdb.GraphDB
}

func newServer(dbDir string, logger *logrus.Logger) *server {
	return &server{
		fs:        afero.NewOsFs(),
		dbDir:     dbDir,
		logger:    logger,
		databases: make(map[string]*graphdb.GraphDB),
	}
}

// openDatabase returns the engine for a named database, opening it on first
// use. Caller must hold s.mu.
func (s *server) openDatabase(name string) (*graphdb.GraphDB, error) {
	if db, ok := s.databases[name]; ok {
		return db, nil
	}
	if err := os.MkdirAll(s.dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %v", err)
	}
	dbPath := filepath.Join(s.dbDir, name+".db")
	db, err := graphdb.Open(s.fs, dbPath, defaultPageSize, defaultBufferCapacity)
	if err != nil {
		return nil, err
	}
	s.databases[name] = db
	return db, nil
}

// query runs a query on a named database under the server mutex
func (s *server) query(dbName, text string) ([]map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.openDatabase(dbName)
	if err != nil {
		return nil, err
	}
	return db.ExecuteQuery(text)
}

// handleConn serves one client: newline-terminated commands in, one JSON
// response per line out
func (s *server) handleConn(conn net.Conn) {
	defer conn.Close()
	sessionID := uuid.NewString()
	log := s.logger.WithFields(logrus.Fields{
		"session": sessionID,
		"remote":  conn.RemoteAddr().String(),
	})
	log.Info("Client connected")

	currentDB := ""
	scanner := bufio.NewScanner(conn)
	writer := bufio.NewWriter(conn)

	send := func(resp response) {
		payload, err := json.Marshal(resp)
		if err != nil {
			log.WithError(err).Error("Failed to encode response")
			return
		}
		writer.Write(payload)
		writer.WriteByte('\n')
		writer.Flush()
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		log.WithField("command", line).Debug("Received command")

		switch {
		case strings.EqualFold(line, "exit"):
			send(response{Status: "success", Message: "Goodbye"})
			log.Info("Client disconnected")
			return
		case strings.HasPrefix(strings.ToLower(line), "use "):
			name := strings.TrimSpace(line[4:])
			if name == "" {
				send(response{Status: "error", Message: "database name required"})
				continue
			}
			s.mu.Lock()
			_, err := s.openDatabase(name)
			s.mu.Unlock()
			if err != nil {
				log.WithError(err).Error("Failed to open database")
				send(response{Status: "error", Message: err.Error()})
				continue
			}
			currentDB = name
			send(response{Status: "success", Message: fmt.Sprintf("Using database %q", name)})
		default:
			if currentDB == "" {
				send(response{Status: "error", Message: "no database selected; send 'use <name>' first"})
				continue
			}
			results, err := s.query(currentDB, line)
			if err != nil {
				log.WithError(err).Warn("Query failed")
				send(response{Status: "error", Message: err.Error()})
				continue
			}
			send(response{Status: "success", Message: fmt.Sprintf("%d row(s)", len(results)), Data: results})
		}
	}
	if err := scanner.Err(); err != nil {
		log.WithError(err).Warn("Connection read error")
	}
	log.Info("Client disconnected")
}

// close shuts down all open databases
func (s *server) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, db := range s.databases {
		if err := db.Close(); err != nil {
			s.logger.WithError(err).WithField("database", name).Error("Failed to close database")
		}
	}
	s.databases = make(map[string]*graphdb.GraphDB)
}

func main() {
	addr := flag.String("addr", ":7687", "listen address")
	dbDir := flag.String("dir", "databases", "directory holding database files")
	flag.Parse()

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	s := newServer(*dbDir, logger)
	defer s.close()

	listener, err := net.Listen("tcp", *addr)
	if err != nil {
		logger.WithError(err).Fatal("Failed to listen")
	}
	logger.WithField("addr", *addr).Info("KiteDB server listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			logger.WithError(err).Error("Accept failed")
			continue
		}
		go s.handleConn(conn)
	}
}
