package graphdb

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Executor walks the AST clause by clause, mutating the graph and a
// per-transaction binding environment
type Executor struct {
	graph  *GraphManager
	txnMgr *TransactionManager
	env    map[int64]map[string]Binding
}

// NewExecutor initializes a new Executor
func NewExecutor(graph *GraphManager, txnMgr *TransactionManager) *Executor {
	return &Executor{
		graph:  graph,
		txnMgr: txnMgr,
		env:    make(map[int64]map[string]Binding),
	}
}

// Execute processes the AST clauses in source order and returns result rows
func (e *Executor) Execute(txnID int64, ast ASTNode) ([]map[string]interface{}, error) {
	if ast.Type != NodeQuery {
		return nil, fmt.Errorf("%w: expected query node, got %v", ErrInvalidArgument, ast.Type)
	}

	e.env[txnID] = make(map[string]Binding)
	defer delete(e.env, txnID)

	results := []map[string]interface{}{}
	for _, child := range ast.Children {
		switch child.Type {
		case NodeCreate:
			if err := e.executeCreate(txnID, child); err != nil {
				return nil, err
			}
		case NodeMatch:
			if err := e.executeMatch(txnID, child); err != nil {
				return nil, err
			}
		case NodeWhere:
			if err := e.executeWhere(txnID, child); err != nil {
				return nil, err
			}
		case NodeSet:
			if err := e.executeSet(txnID, child); err != nil {
				return nil, err
			}
		case NodeDelete:
			if err := e.executeDelete(txnID, child); err != nil {
				return nil, err
			}
		case NodeReturn:
			var err error
			results, err = e.executeReturn(txnID, child)
			if err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: unsupported AST node type: %v", ErrInvalidArgument, child.Type)
		}
	}
	return results, nil
}

// literalValue recovers the typed value from a literal AST node; the node's
// single child carries the type tag
func literalValue(lit ASTNode) (Value, error) {
	if lit.Type != NodeLiteral || len(lit.Children) != 1 {
		return Value{}, fmt.Errorf("%w: invalid literal node", ErrInvalidArgument)
	}
	switch lit.Children[0].Value {
	case "int":
		v, err := strconv.ParseInt(lit.Value, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: invalid int literal %q", ErrType, lit.Value)
		}
		return IntValue(v), nil
	case "string":
		return StringValue(lit.Value), nil
	case "bool":
		return BoolValue(strings.EqualFold(lit.Value, "true")), nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported property type %q", ErrType, lit.Children[0].Value)
	}
}

// propertiesFromAST collects the property children of a node or relationship
// pattern
func propertiesFromAST(children []ASTNode) ([]Property, error) {
	var props []Property
	for _, child := range children {
		if child.Type != NodeProperty {
			continue
		}
		if len(child.Children) != 2 {
			return nil, fmt.Errorf("%w: invalid property in pattern", ErrInvalidArgument)
		}
		value, err := literalValue(child.Children[1])
		if err != nil {
			return nil, err
		}
		props = append(props, Property{Key: child.Children[0].Value, Value: value})
	}
	return props, nil
}

// nodeFromAST builds an unsaved node from a node pattern's labels and
// properties
func nodeFromAST(nodeNode ASTNode) (Node, error) {
	newNode := Node{Active: true}
	for _, child := range nodeNode.Children {
		if child.Type == NodeLabel {
			newNode.Labels = append(newNode.Labels, child.Value)
		}
	}
	props, err := propertiesFromAST(nodeNode.Children)
	if err != nil {
		return Node{}, err
	}
	newNode.Properties = props
	return newNode, nil
}

// createEndpointNode resolves one endpoint of a relationship pattern: reuse a
// singleton binding if present, otherwise create a fresh node from the
// pattern and bind it
func (e *Executor) createEndpointNode(txnID int64, nodeNode ASTNode) (int64, error) {
	varName := nodeNode.Value
	if binding, ok := e.env[txnID][varName]; ok && varName != "" && binding.Kind == BindNodes && len(binding.Nodes) == 1 {
		return binding.Nodes[0].ID, nil
	}

	newNode, err := nodeFromAST(nodeNode)
	if err != nil {
		return 0, err
	}
	nodeID, err := e.graph.AddNode(newNode)
	if err != nil {
		return 0, fmt.Errorf("failed to create node: %w", err)
	}
	if err := e.txnMgr.RecordOperation(txnID, TransactionOperation{Type: OpAddNode, NodeID: nodeID}); err != nil {
		return 0, fmt.Errorf("failed to record operation: %w", err)
	}
	if varName != "" {
		created, err := e.graph.GetNode(nodeID)
		if err != nil {
			return 0, fmt.Errorf("failed to retrieve created node: %w", err)
		}
		e.env[txnID][varName] = Binding{Kind: BindNodes, Nodes: []Node{created}}
	}
	return nodeID, nil
}

// executeCreate handles CREATE clauses; each pattern is created independently
func (e *Executor) executeCreate(txnID int64, node ASTNode) error {
	for _, pattern := range node.Children {
		if pattern.Type != NodePattern {
			return fmt.Errorf("%w: invalid CREATE pattern", ErrInvalidArgument)
		}
		switch {
		case len(pattern.Children) == 1 && pattern.Children[0].Type == NodeNode:
			if err := e.createSingleNode(txnID, pattern.Children[0]); err != nil {
				return err
			}
		case len(pattern.Children) == 3 &&
			pattern.Children[0].Type == NodeNode &&
			pattern.Children[1].Type == NodeRelationship &&
			pattern.Children[2].Type == NodeNode:
			if err := e.createRelationship(txnID, pattern); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: invalid pattern in CREATE", ErrInvalidArgument)
		}
	}
	return nil
}

// createSingleNode creates one node and appends it to the pattern variable's
// binding
func (e *Executor) createSingleNode(txnID int64, nodeNode ASTNode) error {
	newNode, err := nodeFromAST(nodeNode)
	if err != nil {
		return err
	}

	nodeID, err := e.graph.AddNode(newNode)
	if err != nil {
		return fmt.Errorf("failed to add node: %w", err)
	}
	if err := e.txnMgr.RecordOperation(txnID, TransactionOperation{Type: OpAddNode, NodeID: nodeID}); err != nil {
		return fmt.Errorf("failed to record operation: %w", err)
	}

	if varName := nodeNode.Value; varName != "" {
		created, err := e.graph.GetNode(nodeID)
		if err != nil {
			return fmt.Errorf("failed to retrieve created node: %w", err)
		}
		binding := e.env[txnID][varName]
		binding.Kind = BindNodes
		binding.Nodes = append(binding.Nodes, created)
		e.env[txnID][varName] = binding
	}
	return nil
}

// createRelationship creates an edge, creating or reusing its endpoints
func (e *Executor) createRelationship(txnID int64, pattern ASTNode) error {
	sourceNode := pattern.Children[0]
	relNode := pattern.Children[1]
	targetNode := pattern.Children[2]

	sourceID, err := e.createEndpointNode(txnID, sourceNode)
	if err != nil {
		return err
	}
	targetID, err := e.createEndpointNode(txnID, targetNode)
	if err != nil {
		return err
	}

	newEdge := Edge{Source: sourceID, Target: targetID, Active: true}
	for _, child := range relNode.Children {
		if child.Type == NodeType {
			newEdge.Type = child.Value
		}
	}
	props, err := propertiesFromAST(relNode.Children)
	if err != nil {
		return err
	}
	newEdge.Properties = props
	if newEdge.Type == "" {
		return fmt.Errorf("%w: relationship type required", ErrInvalidArgument)
	}

	edgeID, err := e.graph.AddEdge(newEdge)
	if err != nil {
		return fmt.Errorf("failed to add edge: %w", err)
	}
	if err := e.txnMgr.RecordOperation(txnID, TransactionOperation{Type: OpAddEdge, EdgeID: edgeID}); err != nil {
		return fmt.Errorf("failed to record edge operation: %w", err)
	}

	if relVar := relNode.Value; relVar != "" {
		created, err := e.graph.GetEdge(edgeID)
		if err != nil {
			return fmt.Errorf("failed to retrieve created edge: %w", err)
		}
		binding := e.env[txnID][relVar]
		binding.Kind = BindEdges
		binding.Edges = append(binding.Edges, created)
		e.env[txnID][relVar] = binding
	}
	return nil
}

// executeMatch handles MATCH clauses; each pattern binds independently, no
// cross-pattern join
func (e *Executor) executeMatch(txnID int64, node ASTNode) error {
	for _, pattern := range node.Children {
		if pattern.Type != NodePattern {
			return fmt.Errorf("%w: invalid MATCH pattern", ErrInvalidArgument)
		}
		switch {
		case len(pattern.Children) == 1 && pattern.Children[0].Type == NodeNode:
			if err := e.matchSingleNode(txnID, pattern.Children[0]); err != nil {
				return err
			}
		case len(pattern.Children) == 3 &&
			pattern.Children[0].Type == NodeNode &&
			pattern.Children[1].Type == NodeRelationship &&
			pattern.Children[2].Type == NodeNode:
			if err := e.matchRelationship(txnID, pattern); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: invalid pattern in MATCH", ErrInvalidArgument)
		}
	}
	return nil
}

// matchSingleNode binds a variable to all active nodes under a label
func (e *Executor) matchSingleNode(txnID int64, nodeNode ASTNode) error {
	var label string
	for _, child := range nodeNode.Children {
		if child.Type == NodeLabel {
			label = child.Value
			break
		}
	}
	if label == "" {
		return fmt.Errorf("%w: MATCH requires a label", ErrInvalidArgument)
	}

	nodes := []Node{}
	for _, nodeID := range e.graph.indexManager.NodesWithLabel(label) {
		node, err := e.graph.GetNode(nodeID)
		if err != nil {
			continue
		}
		nodes = append(nodes, node)
	}

	if varName := nodeNode.Value; varName != "" {
		e.env[txnID][varName] = Binding{Kind: BindNodes, Nodes: nodes}
	}

	logrus.WithFields(logrus.Fields{
		"txn_id": txnID,
		"label":  label,
		"count":  len(nodes),
	}).Debug("MATCH bound nodes by label")
	return nil
}

// matchRelationship binds a relationship variable to all active edges of a
// type, and the endpoint variables to the parallel source/target node lists
func (e *Executor) matchRelationship(txnID int64, pattern ASTNode) error {
	sourceNode := pattern.Children[0]
	relNode := pattern.Children[1]
	targetNode := pattern.Children[2]

	var relType string
	for _, child := range relNode.Children {
		if child.Type == NodeType {
			relType = child.Value
			break
		}
	}
	if relType == "" {
		return fmt.Errorf("%w: MATCH requires a relationship type", ErrInvalidArgument)
	}

	ids := e.graph.indexManager.EdgeIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	edges := []Edge{}
	for _, edgeID := range ids {
		edge, err := e.graph.GetEdge(edgeID)
		if err != nil {
			continue
		}
		if edge.Type == relType {
			edges = append(edges, edge)
		}
	}

	if relVar := relNode.Value; relVar != "" {
		e.env[txnID][relVar] = Binding{Kind: BindEdges, Edges: edges}
	}

	// Endpoint bindings are per-edge parallel lists; duplicates allowed,
	// dangling endpoints skipped.
	if sourceNode.Value != "" {
		nodes := []Node{}
		for _, edge := range edges {
			node, err := e.graph.GetNode(edge.Source)
			if err != nil {
				continue
			}
			nodes = append(nodes, node)
		}
		e.env[txnID][sourceNode.Value] = Binding{Kind: BindNodes, Nodes: nodes}
	}
	if targetNode.Value != "" {
		nodes := []Node{}
		for _, edge := range edges {
			node, err := e.graph.GetNode(edge.Target)
			if err != nil {
				continue
			}
			nodes = append(nodes, node)
		}
		e.env[txnID][targetNode.Value] = Binding{Kind: BindNodes, Nodes: nodes}
	}

	logrus.WithFields(logrus.Fields{
		"txn_id":   txnID,
		"rel_type": relType,
		"count":    len(edges),
	}).Debug("MATCH bound edges by type")
	return nil
}

// hasProperty reports whether the property list holds key with exactly the
// expected typed value
func hasProperty(props []Property, key string, expected Value) bool {
	for _, prop := range props {
		if prop.Key == key && prop.Value.Equal(expected) {
			return true
		}
	}
	return false
}

// executeWhere filters a binding in place by var.key = literal
func (e *Executor) executeWhere(txnID int64, node ASTNode) error {
	if len(node.Children) != 1 || node.Children[0].Type != NodeExpression {
		return fmt.Errorf("%w: invalid WHERE expression", ErrInvalidArgument)
	}
	expr := node.Children[0]
	if len(expr.Children) != 3 {
		return fmt.Errorf("%w: invalid expression format", ErrInvalidArgument)
	}

	varName := expr.Children[0].Value
	key := expr.Children[1].Value
	expected, err := literalValue(expr.Children[2])
	if err != nil {
		return err
	}

	binding, exists := e.env[txnID][varName]
	if !exists {
		return fmt.Errorf("%w: variable %q not bound in WHERE", ErrNotFound, varName)
	}

	switch binding.Kind {
	case BindNodes:
		filtered := []Node{}
		for _, node := range binding.Nodes {
			if hasProperty(node.Properties, key, expected) {
				filtered = append(filtered, node)
			}
		}
		binding.Nodes = filtered
	case BindEdges:
		filtered := []Edge{}
		for _, edge := range binding.Edges {
			if hasProperty(edge.Properties, key, expected) {
				filtered = append(filtered, edge)
			}
		}
		binding.Edges = filtered
	}
	e.env[txnID][varName] = binding

	logrus.WithFields(logrus.Fields{
		"txn_id":   txnID,
		"var_name": varName,
		"key":      key,
	}).Debug("WHERE filter applied")
	return nil
}

// executeSet updates every entity bound to each assignment's variable with a
// single-property patch
func (e *Executor) executeSet(txnID int64, node ASTNode) error {
	for _, child := range node.Children {
		if child.Type != NodeProperty || len(child.Children) != 3 {
			return fmt.Errorf("%w: invalid SET property", ErrInvalidArgument)
		}
		varName := child.Children[0].Value
		key := child.Children[1].Value
		value, err := literalValue(child.Children[2])
		if err != nil {
			return err
		}
		patch := []Property{{Key: key, Value: value}}

		binding, exists := e.env[txnID][varName]
		if !exists {
			return fmt.Errorf("%w: variable %q not bound in SET", ErrNotFound, varName)
		}

		switch binding.Kind {
		case BindNodes:
			for _, node := range binding.Nodes {
				if err := e.graph.UpdateNode(node.ID, patch); err != nil {
					return fmt.Errorf("failed to update node %d: %w", node.ID, err)
				}
				if err := e.txnMgr.RecordOperation(txnID, TransactionOperation{
					Type:       OpUpdateNode,
					NodeID:     node.ID,
					Properties: patch,
				}); err != nil {
					return fmt.Errorf("failed to record operation: %w", err)
				}
			}
		case BindEdges:
			for _, edge := range binding.Edges {
				if err := e.graph.UpdateEdge(edge.ID, patch); err != nil {
					return fmt.Errorf("failed to update edge %d: %w", edge.ID, err)
				}
				if err := e.txnMgr.RecordOperation(txnID, TransactionOperation{
					Type:       OpUpdateEdge,
					EdgeID:     edge.ID,
					Properties: patch,
				}); err != nil {
					return fmt.Errorf("failed to record operation: %w", err)
				}
			}
		}
	}
	return nil
}

// executeDelete deletes every entity bound to each identifier and removes the
// binding
func (e *Executor) executeDelete(txnID int64, node ASTNode) error {
	for _, child := range node.Children {
		if child.Type != NodeIdentifier {
			return fmt.Errorf("%w: invalid DELETE identifier", ErrInvalidArgument)
		}
		varName := child.Value
		binding, exists := e.env[txnID][varName]
		if !exists {
			return fmt.Errorf("%w: variable %q not bound in DELETE", ErrNotFound, varName)
		}

		switch binding.Kind {
		case BindNodes:
			for _, node := range binding.Nodes {
				if err := e.graph.DeleteNode(node.ID); err != nil {
					return fmt.Errorf("failed to delete node %d: %w", node.ID, err)
				}
				if err := e.txnMgr.RecordOperation(txnID, TransactionOperation{
					Type:   OpDeleteNode,
					NodeID: node.ID,
				}); err != nil {
					return fmt.Errorf("failed to record operation: %w", err)
				}
			}
		case BindEdges:
			for _, edge := range binding.Edges {
				if err := e.graph.DeleteEdge(edge.ID); err != nil {
					return fmt.Errorf("failed to delete edge %d: %w", edge.ID, err)
				}
				if err := e.txnMgr.RecordOperation(txnID, TransactionOperation{
					Type:   OpDeleteEdge,
					EdgeID: edge.ID,
				}); err != nil {
					return fmt.Errorf("failed to record operation: %w", err)
				}
			}
		}

		delete(e.env[txnID], varName)
	}
	return nil
}

// propertiesToMap renders a property list for a result row, last-wins on
// duplicate keys
func propertiesToMap(props []Property) map[string]interface{} {
	out := make(map[string]interface{}, len(props))
	for _, prop := range props {
		out[prop.Key] = prop.Value.Native()
	}
	return out
}

// executeReturn collects one row per entity per identifier, deduplicated by
// entity kind and ID, in binding order
func (e *Executor) executeReturn(txnID int64, node ASTNode) ([]map[string]interface{}, error) {
	results := []map[string]interface{}{}
	seen := make(map[string]bool)

	for _, child := range node.Children {
		if child.Type != NodeIdentifier {
			return nil, fmt.Errorf("%w: invalid RETURN identifier", ErrInvalidArgument)
		}
		varName := child.Value
		binding, exists := e.env[txnID][varName]
		if !exists {
			return nil, fmt.Errorf("%w: variable %q not bound in RETURN", ErrNotFound, varName)
		}

		switch binding.Kind {
		case BindNodes:
			for _, node := range binding.Nodes {
				key := fmt.Sprintf("node:%d", node.ID)
				if seen[key] {
					continue
				}
				seen[key] = true
				results = append(results, map[string]interface{}{
					varName: map[string]interface{}{
						"id":         node.ID,
						"labels":     node.Labels,
						"properties": propertiesToMap(node.Properties),
					},
				})
			}
		case BindEdges:
			for _, edge := range binding.Edges {
				key := fmt.Sprintf("edge:%d", edge.ID)
				if seen[key] {
					continue
				}
				seen[key] = true
				results = append(results, map[string]interface{}{
					varName: map[string]interface{}{
						"id":         edge.ID,
						"type":       edge.Type,
						"source":     edge.Source,
						"target":     edge.Target,
						"properties": propertiesToMap(edge.Properties),
					},
				})
			}
		}
	}
	return results, nil
}
