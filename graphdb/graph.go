package graphdb

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// GraphManager coordinates record writes and index maintenance, and owns the
// monotonic ID counters for nodes and edges.
type GraphManager struct {
	bufferPool   *BufferPool
	indexManager *IndexManager
	recordMgr    *RecordManager
	nextNodeID   int64
	nextEdgeID   int64
}

// NewGraphManager initializes a new GraphManager
func NewGraphManager(bufferPool *BufferPool, indexManager *IndexManager, recordMgr *RecordManager) *GraphManager {
	log := logrus.WithField("component", "GraphManager")
	log.Info("Initializing GraphManager")
	return &GraphManager{
		bufferPool:   bufferPool,
		indexManager: indexManager,
		recordMgr:    recordMgr,
		nextNodeID:   1,
		nextEdgeID:   1,
	}
}

// AddNode assigns an ID, writes the node, and indexes it. Returns the ID.
func (gm *GraphManager) AddNode(node Node) (int64, error) {
	node.ID = gm.nextNodeID
	node.Active = true
	gm.nextNodeID++

	log := logrus.WithFields(logrus.Fields{
		"node_id": node.ID,
		"labels":  node.Labels,
	})

	pageID, err := gm.recordMgr.WriteRecord(node)
	if err != nil {
		log.WithError(err).Error("Failed to write node")
		return 0, fmt.Errorf("failed to write node: %w", err)
	}

	if err := gm.indexManager.InsertNode(node.ID, pageID); err != nil {
		log.WithError(err).Error("Failed to insert node into index")
		return 0, fmt.Errorf("failed to insert node into index: %w", err)
	}

	for _, label := range node.Labels {
		gm.indexManager.AppendLabel(label, node.ID)
	}

	log.Info("Node added successfully")
	return node.ID, nil
}

// AddEdge assigns an ID, writes the edge, and indexes it. Returns the ID.
// The edge type is required.
func (gm *GraphManager) AddEdge(edge Edge) (int64, error) {
	if edge.Type == "" {
		return 0, fmt.Errorf("%w: edge type required", ErrInvalidArgument)
	}
	edge.ID = gm.nextEdgeID
	edge.Active = true
	gm.nextEdgeID++

	log := logrus.WithFields(logrus.Fields{
		"edge_id": edge.ID,
		"type":    edge.Type,
		"source":  edge.Source,
		"target":  edge.Target,
	})

	pageID, err := gm.recordMgr.WriteRecord(edge)
	if err != nil {
		log.WithError(err).Error("Failed to write edge")
		return 0, fmt.Errorf("failed to write edge: %w", err)
	}

	if err := gm.indexManager.InsertEdge(edge.ID, pageID); err != nil {
		log.WithError(err).Error("Failed to insert edge into index")
		return 0, fmt.Errorf("failed to insert edge into index: %w", err)
	}

	log.Info("Edge added successfully")
	return edge.ID, nil
}

// GetNode retrieves a node by ID. Inactive nodes are an error.
func (gm *GraphManager) GetNode(nodeID int64) (Node, error) {
	log := logrus.WithField("node_id", nodeID)

	pageID, err := gm.indexManager.SearchNode(nodeID)
	if err != nil {
		return Node{}, err
	}

	var node Node
	if err := gm.recordMgr.ReadRecord(pageID, &node); err != nil {
		log.WithError(err).Error("Failed to read node")
		return Node{}, fmt.Errorf("failed to read node %d: %w", nodeID, err)
	}

	if !node.Active {
		log.Debug("Node is not active")
		return Node{}, fmt.Errorf("%w: node %d", ErrNotActive, nodeID)
	}

	return node, nil
}

// GetEdge retrieves an edge by ID. Inactive edges are an error.
func (gm *GraphManager) GetEdge(edgeID int64) (Edge, error) {
	log := logrus.WithField("edge_id", edgeID)

	pageID, err := gm.indexManager.SearchEdge(edgeID)
	if err != nil {
		return Edge{}, err
	}

	var edge Edge
	if err := gm.recordMgr.ReadRecord(pageID, &edge); err != nil {
		log.WithError(err).Error("Failed to read edge")
		return Edge{}, fmt.Errorf("failed to read edge %d: %w", edgeID, err)
	}

	if !edge.Active {
		log.Debug("Edge is not active")
		return Edge{}, fmt.Errorf("%w: edge %d", ErrNotActive, edgeID)
	}

	return edge, nil
}

// mergeProperties applies a patch last-wins, preserving the order of existing
// keys and appending new ones
func mergeProperties(current, patch []Property) []Property {
	merged := make([]Property, len(current))
	copy(merged, current)
	for _, p := range patch {
		replaced := false
		for i := range merged {
			if merged[i].Key == p.Key {
				merged[i] = p
				replaced = true
			}
		}
		if !replaced {
			merged = append(merged, p)
		}
	}
	return merged
}

// UpdateNode merges the patch into the node's properties and writes a new
// version, repointing the index
func (gm *GraphManager) UpdateNode(nodeID int64, newProperties []Property) error {
	log := logrus.WithField("node_id", nodeID)
	node, err := gm.GetNode(nodeID)
	if err != nil {
		log.WithError(err).Error("Failed to get node")
		return fmt.Errorf("failed to get node %d: %w", nodeID, err)
	}

	node.Properties = mergeProperties(node.Properties, newProperties)

	pageID, err := gm.recordMgr.WriteRecord(node)
	if err != nil {
		log.WithError(err).Error("Failed to write updated node")
		return fmt.Errorf("failed to write updated node: %w", err)
	}

	if err := gm.indexManager.DeleteNode(nodeID); err != nil {
		log.WithError(err).Error("Failed to delete old node index entry")
		return fmt.Errorf("failed to delete old node %d index entry: %w", nodeID, err)
	}
	if err := gm.indexManager.InsertNode(nodeID, pageID); err != nil {
		log.WithError(err).Error("Failed to update node in index")
		return fmt.Errorf("failed to update node %d in index: %w", nodeID, err)
	}

	log.Info("Node updated successfully")
	return nil
}

// UpdateEdge merges the patch into the edge's properties and writes a new
// version, repointing the index
func (gm *GraphManager) UpdateEdge(edgeID int64, newProperties []Property) error {
	log := logrus.WithField("edge_id", edgeID)
	edge, err := gm.GetEdge(edgeID)
	if err != nil {
		log.WithError(err).Error("Failed to get edge")
		return fmt.Errorf("failed to get edge %d: %w", edgeID, err)
	}

	edge.Properties = mergeProperties(edge.Properties, newProperties)

	pageID, err := gm.recordMgr.WriteRecord(edge)
	if err != nil {
		log.WithError(err).Error("Failed to write updated edge")
		return fmt.Errorf("failed to write updated edge: %w", err)
	}

	if err := gm.indexManager.DeleteEdge(edgeID); err != nil {
		log.WithError(err).Error("Failed to delete old edge index entry")
		return fmt.Errorf("failed to delete old edge %d index entry: %w", edgeID, err)
	}
	if err := gm.indexManager.InsertEdge(edgeID, pageID); err != nil {
		log.WithError(err).Error("Failed to update edge in index")
		return fmt.Errorf("failed to update edge %d in index: %w", edgeID, err)
	}

	log.Info("Edge updated successfully")
	return nil
}

// DeleteNode writes an inactive version of the node and unindexes it. The
// inactive record exists only so a later boot scan skips the entity.
// Incident edges are not touched and may dangle.
func (gm *GraphManager) DeleteNode(nodeID int64) error {
	log := logrus.WithField("node_id", nodeID)
	node, err := gm.GetNode(nodeID)
	if err != nil {
		log.WithError(err).Error("Failed to get node")
		return fmt.Errorf("failed to get node %d: %w", nodeID, err)
	}

	node.Active = false
	if _, err := gm.recordMgr.WriteRecord(node); err != nil {
		log.WithError(err).Error("Failed to write deleted node")
		return fmt.Errorf("failed to write deleted node: %w", err)
	}

	if err := gm.indexManager.DeleteNode(nodeID); err != nil {
		log.WithError(err).Error("Failed to delete node from index")
		return fmt.Errorf("failed to delete node from index: %w", err)
	}
	gm.indexManager.ScrubLabels(nodeID)

	log.Info("Node deleted successfully")
	return nil
}

// DeleteEdge writes an inactive version of the edge and unindexes it
func (gm *GraphManager) DeleteEdge(edgeID int64) error {
	log := logrus.WithField("edge_id", edgeID)
	edge, err := gm.GetEdge(edgeID)
	if err != nil {
		log.WithError(err).Error("Failed to get edge")
		return fmt.Errorf("failed to get edge %d: %w", edgeID, err)
	}

	edge.Active = false
	if _, err := gm.recordMgr.WriteRecord(edge); err != nil {
		log.WithError(err).Error("Failed to write deleted edge")
		return fmt.Errorf("failed to write deleted edge: %w", err)
	}

	if err := gm.indexManager.DeleteEdge(edgeID); err != nil {
		log.WithError(err).Error("Failed to delete edge from index")
		return fmt.Errorf("failed to delete edge from index: %w", err)
	}

	log.Info("Edge deleted successfully")
	return nil
}

// Rebuild reconstructs the in-memory indexes and ID counters by scanning
// every record page. Pages are visited in ascending order, so for an entity
// written more than once the highest page wins: writes are append-only and
// later pages are newer. Entities whose newest record is inactive stay out of
// the indexes. Records carry no kind tag, so classification decodes node
// first and falls back to edge; an edge's type bytes read as a label length
// overrun the buffer, which is what makes the node decode reliable.
func (gm *GraphManager) Rebuild() error {
	log := logrus.WithField("component", "GraphManager")
	storage := gm.bufferPool.storage

	nodeStates := make(map[int64]Node)
	nodePages := make(map[int64]int)
	edgeStates := make(map[int64]Edge)
	edgePages := make(map[int64]int)
	var maxNodeID, maxEdgeID int64

	for pageID := 1; pageID < storage.NumPages(); pageID++ {
		data, err := storage.ReadPage(pageID)
		if err != nil {
			log.WithError(err).WithField("page_id", pageID).Error("Failed to read page during rebuild")
			return fmt.Errorf("rebuild: failed to read page %d: %w", pageID, err)
		}

		var node Node
		if err := Deserialize(data, &node); err == nil {
			nodeStates[node.ID] = node
			nodePages[node.ID] = pageID
			if node.ID > maxNodeID {
				maxNodeID = node.ID
			}
			continue
		}

		var edge Edge
		if err := Deserialize(data, &edge); err == nil {
			edgeStates[edge.ID] = edge
			edgePages[edge.ID] = pageID
			if edge.ID > maxEdgeID {
				maxEdgeID = edge.ID
			}
			continue
		}

		log.WithField("page_id", pageID).Warn("Skipping undecodable page during rebuild")
	}

	nodeIDs := make([]int64, 0, len(nodeStates))
	for id := range nodeStates {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Slice(nodeIDs, func(i, j int) bool { return nodeIDs[i] < nodeIDs[j] })
	for _, id := range nodeIDs {
		node := nodeStates[id]
		if !node.Active {
			continue
		}
		if err := gm.indexManager.InsertNode(id, nodePages[id]); err != nil {
			return fmt.Errorf("rebuild: %w", err)
		}
		for _, label := range node.Labels {
			gm.indexManager.AppendLabel(label, id)
		}
	}

	edgeIDs := make([]int64, 0, len(edgeStates))
	for id := range edgeStates {
		edgeIDs = append(edgeIDs, id)
	}
	sort.Slice(edgeIDs, func(i, j int) bool { return edgeIDs[i] < edgeIDs[j] })
	for _, id := range edgeIDs {
		if !edgeStates[id].Active {
			continue
		}
		if err := gm.indexManager.InsertEdge(id, edgePages[id]); err != nil {
			return fmt.Errorf("rebuild: %w", err)
		}
	}

	gm.nextNodeID = maxNodeID + 1
	gm.nextEdgeID = maxEdgeID + 1

	log.WithFields(logrus.Fields{
		"nodes":        len(nodeIDs),
		"edges":        len(edgeIDs),
		"next_node_id": gm.nextNodeID,
		"next_edge_id": gm.nextEdgeID,
	}).Info("Index rebuild complete")
	return nil
}

// CountNodes returns the number of live nodes
func (gm *GraphManager) CountNodes() int {
	return len(gm.indexManager.nodeIndex)
}

// CountEdges returns the number of live edges
func (gm *GraphManager) CountEdges() int {
	return len(gm.indexManager.edgeIndex)
}

// Edges returns all live edges ordered by ID
func (gm *GraphManager) Edges() ([]Edge, error) {
	ids := gm.indexManager.EdgeIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	edges := make([]Edge, 0, len(ids))
	for _, id := range ids {
		edge, err := gm.GetEdge(id)
		if err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	return edges, nil
}
