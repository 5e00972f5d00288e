package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"kitedb/graphdb"
)

const (
	defaultPageSize       = 4096
	defaultBufferCapacity = 100
)

// replState holds the state of the REPL
type replState struct {
	fs        afero.Fs
	db        *graphdb.GraphDB
	dbName    string
	dbDir     string
	logger    *logrus.Logger
	queryNum  int
	isRunning bool
}

// newReplState initializes the REPL state
func newReplState(dbDir string) *replState {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return &replState{
		fs:        afero.NewOsFs(),
		dbDir:     dbDir,
		logger:    logger,
		isRunning: true,
	}
}

// initializeDB opens a GraphDB instance for the given database name
func (rs *replState) initializeDB(dbName string) error {
	dbPath := filepath.Join(rs.dbDir, dbName+".db")
	db, err := graphdb.Open(rs.fs, dbPath, defaultPageSize, defaultBufferCapacity)
	if err != nil {
		return fmt.Errorf("failed to initialize database %s: %v", dbName, err)
	}
	rs.db = db
	rs.dbName = dbName
	rs.logger.WithField("component", "Main").Infof("Using database: %s", dbName)
	return nil
}

// createDatabase creates a new database file
func (rs *replState) createDatabase(dbName string) error {
	if _, err := os.Stat(rs.dbDir); os.IsNotExist(err) {
		if err := os.Mkdir(rs.dbDir, 0755); err != nil {
			return fmt.Errorf("failed to create databases directory: %v", err)
		}
	}
	dbPath := filepath.Join(rs.dbDir, dbName+".db")
	if _, err := os.Stat(dbPath); err == nil {
		return fmt.Errorf("database %s already exists", dbName)
	}
	file, err := os.Create(dbPath)
	if err != nil {
		return fmt.Errorf("failed to create database %s: %v", dbName, err)
	}
	file.Close()
	rs.logger.WithField("component", "Main").Infof("Created database: %s", dbName)
	fmt.Printf("Created database: %s\n", dbName)
	return nil
}

// useDatabase switches to the specified database
func (rs *replState) useDatabase(dbName string) error {
	dbPath := filepath.Join(rs.dbDir, dbName+".db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("database %s does not exist", dbName)
	}
	if rs.db != nil {
		rs.db.Close()
		rs.db = nil
	}
	return rs.initializeDB(dbName)
}

// showDatabases lists all databases
func (rs *replState) showDatabases() ([]string, error) {
	if _, err := os.Stat(rs.dbDir); os.IsNotExist(err) {
		return []string{}, nil
	}
	files, err := os.ReadDir(rs.dbDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read databases directory: %v", err)
	}
	var dbs []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".db") {
			dbs = append(dbs, strings.TrimSuffix(file.Name(), ".db"))
		}
	}
	return dbs, nil
}

// dropDatabase deletes the specified database
func (rs *replState) dropDatabase(dbName string) error {
	dbPath := filepath.Join(rs.dbDir, dbName+".db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("database %s does not exist", dbName)
	}
	if rs.dbName == dbName {
		rs.db.Close()
		rs.db = nil
		rs.dbName = ""
	}
	if err := os.Remove(dbPath); err != nil {
		return fmt.Errorf("failed to drop database %s: %v", dbName, err)
	}
	rs.logger.WithField("component", "Main").Infof("Dropped database: %s", dbName)
	fmt.Printf("Dropped database: %s\n", dbName)
	return nil
}

// requireDB returns an error unless a database is selected
func (rs *replState) requireDB() error {
	if rs.db == nil {
		return fmt.Errorf("no database selected; use 'USE DATABASE <name>'")
	}
	return nil
}

// showNodes lists all nodes, label by label
func (rs *replState) showNodes() error {
	if err := rs.requireDB(); err != nil {
		return err
	}
	labels := rs.db.Labels()
	if len(labels) == 0 {
		fmt.Println("No nodes found")
		return nil
	}
	fmt.Println("Nodes:")
	for _, label := range labels {
		results, err := rs.db.ExecuteQuery(fmt.Sprintf("MATCH (n:%s) RETURN n", label))
		if err != nil {
			return fmt.Errorf("failed to show nodes with label %s: %v", label, err)
		}
		for _, result := range results {
			node := result["n"].(map[string]interface{})
			fmt.Printf("  ID: %v, Labels: %v, Properties: %v\n", node["id"], node["labels"], node["properties"])
		}
	}
	return nil
}

// showEdges lists all edges
func (rs *replState) showEdges() error {
	if err := rs.requireDB(); err != nil {
		return err
	}
	edges, err := rs.db.Edges()
	if err != nil {
		return fmt.Errorf("failed to show edges: %v", err)
	}
	if len(edges) == 0 {
		fmt.Println("No edges found")
		return nil
	}
	fmt.Println("Edges:")
	for _, edge := range edges {
		props := make(map[string]string, len(edge.Properties))
		for _, p := range edge.Properties {
			props[p.Key] = p.Value.String()
		}
		fmt.Printf("  ID: %d, Type: %s, %d -> %d, Properties: %v\n", edge.ID, edge.Type, edge.Source, edge.Target, props)
	}
	return nil
}

// describeDatabase shows metadata about the current database
func (rs *replState) describeDatabase() error {
	if err := rs.requireDB(); err != nil {
		return err
	}
	fmt.Printf("Database: %s\n", rs.dbName)
	fmt.Printf("  Node Count: %d\n", rs.db.CountNodes())
	fmt.Printf("  Edge Count: %d\n", rs.db.CountEdges())
	fmt.Printf("  Page Size: %d bytes\n", rs.db.PageSize())
	fmt.Printf("  Buffer Capacity: %d pages\n", rs.db.BufferCapacity())
	return nil
}

// clearDatabase deletes all nodes, label by label
func (rs *replState) clearDatabase() error {
	if err := rs.requireDB(); err != nil {
		return err
	}
	for _, label := range rs.db.Labels() {
		if _, err := rs.db.ExecuteQuery(fmt.Sprintf("MATCH (n:%s) DELETE n", label)); err != nil {
			return fmt.Errorf("failed to clear nodes with label %s: %v", label, err)
		}
	}
	rs.logger.WithField("component", "Main").Info("Cleared nodes from database")
	fmt.Println("Nodes cleared from database")
	return nil
}

// executeQuery forwards a query to the engine and prints the rows
func (rs *replState) executeQuery(query string) error {
	if err := rs.requireDB(); err != nil {
		return err
	}
	rs.queryNum++
	log := rs.logger.WithFields(logrus.Fields{
		"component": "Main",
		"query":     query,
		"query_num": rs.queryNum,
	})
	log.Info("Executing query")
	results, err := rs.db.ExecuteQuery(query)
	if err != nil {
		log.WithError(err).Error("Failed to execute query")
		return fmt.Errorf("query execution failed: %v", err)
	}
	if len(results) > 0 {
		fmt.Println("Results:")
		for _, result := range results {
			fmt.Printf("%v\n", result)
		}
	} else {
		fmt.Println("No results returned")
	}
	return nil
}

// printHelp displays the help message
func (rs *replState) printHelp() {
	fmt.Println("KiteDB REPL Commands:")
	fmt.Println("  .help                     Show this help message")
	fmt.Println("  .exit                     Exit the REPL")
	fmt.Println("  CREATE DATABASE <name>    Create a new database")
	fmt.Println("  USE DATABASE <name>       Switch to the specified database")
	fmt.Println("  SHOW DATABASES            List all databases")
	fmt.Println("  DROP DATABASE <name>      Delete the specified database")
	fmt.Println("  SHOW NODES                List all nodes")
	fmt.Println("  SHOW EDGES                List all edges")
	fmt.Println("  DESCRIBE DATABASE         Show database metadata")
	fmt.Println("  CLEAR DATABASE            Delete all nodes")
	fmt.Println("Cypher Queries:")
	fmt.Println("  CREATE (n:Person {name: \"Alice\", age: 30})")
	fmt.Println("  CREATE (a:Person {name: \"A\"})-[r:KNOWS {since: 2020}]->(b:Person {name: \"B\"})")
	fmt.Println("  MATCH (n:Person) WHERE n.name = \"Alice\" RETURN n")
	fmt.Println("  MATCH (n:Person) SET n.age = 31")
	fmt.Println("  MATCH (n:Person) DELETE n")
	fmt.Println("Type '.exit' or 'quit' to exit.")
}

// processCommand processes a REPL command or query
func (rs *replState) processCommand(input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}

	if strings.HasPrefix(input, ".") {
		switch strings.ToLower(input) {
		case ".help":
			rs.printHelp()
			return nil
		case ".exit":
			rs.isRunning = false
			return nil
		default:
			return fmt.Errorf("unknown command: %s; type '.help' for assistance", input)
		}
	}

	lowerInput := strings.ToLower(input)
	switch {
	case lowerInput == "quit":
		rs.isRunning = false
		return nil
	case strings.HasPrefix(lowerInput, "create database "):
		dbName := strings.TrimSpace(input[len("create database "):])
		if dbName == "" {
			return fmt.Errorf("database name required")
		}
		return rs.createDatabase(dbName)
	case strings.HasPrefix(lowerInput, "use database "):
		dbName := strings.TrimSpace(input[len("use database "):])
		if dbName == "" {
			return fmt.Errorf("database name required")
		}
		return rs.useDatabase(dbName)
	case lowerInput == "show databases":
		dbs, err := rs.showDatabases()
		if err != nil {
			return err
		}
		if len(dbs) == 0 {
			fmt.Println("No databases found")
		} else {
			fmt.Println("Databases:")
			for _, db := range dbs {
				fmt.Printf("  %s\n", db)
			}
		}
		return nil
	case strings.HasPrefix(lowerInput, "drop database "):
		dbName := strings.TrimSpace(input[len("drop database "):])
		if dbName == "" {
			return fmt.Errorf("database name required")
		}
		return rs.dropDatabase(dbName)
	case lowerInput == "show nodes":
		return rs.showNodes()
	case lowerInput == "show edges":
		return rs.showEdges()
	case lowerInput == "describe database":
		return rs.describeDatabase()
	case lowerInput == "clear database":
		return rs.clearDatabase()
	}

	return rs.executeQuery(input)
}

// runREPL runs the REPL loop
func (rs *replState) runREPL() {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Welcome to KiteDB. Type '.help' for commands or 'quit' to exit.")

	for rs.isRunning {
		prompt := "kitedb"
		if rs.dbName != "" {
			prompt = fmt.Sprintf("kitedb(%s)", rs.dbName)
		}
		fmt.Printf("%s> ", prompt)
		if !scanner.Scan() {
			break
		}
		if err := rs.processCommand(scanner.Text()); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}

	if rs.db != nil {
		rs.db.Close()
	}
	fmt.Println("Goodbye!")
}

func main() {
	dbDir := flag.String("dir", "databases", "directory holding database files")
	flag.Parse()

	rs := newReplState(*dbDir)
	rs.runREPL()
}
