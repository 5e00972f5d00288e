package graphdb

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// IndexManager holds the in-memory indexes: the primary node and edge maps
// (entity ID to the page holding its current serialization) and the inverted
// label index (label to node IDs in insertion order). The label index is
// maintained by the graph manager on add and delete.
type IndexManager struct {
	nodeIndex  map[int64]int
	edgeIndex  map[int64]int
	labelIndex map[string][]int64
}

// NewIndexManager initializes a new IndexManager
func NewIndexManager() *IndexManager {
	log := logrus.WithField("component", "IndexManager")
	log.Info("Initializing IndexManager")
	return &IndexManager{
		nodeIndex:  make(map[int64]int),
		edgeIndex:  make(map[int64]int),
		labelIndex: make(map[string][]int64),
	}
}

// InsertNode adds a node to the primary index
func (im *IndexManager) InsertNode(nodeID int64, pageID int) error {
	log := logrus.WithFields(logrus.Fields{
		"node_id": nodeID,
		"page_id": pageID,
	})
	if _, exists := im.nodeIndex[nodeID]; exists {
		log.Error("Node ID already exists in index")
		return fmt.Errorf("%w: node ID %d", ErrDuplicateID, nodeID)
	}
	im.nodeIndex[nodeID] = pageID
	log.Debug("Node inserted into index")
	return nil
}

// InsertEdge adds an edge to the primary index
func (im *IndexManager) InsertEdge(edgeID int64, pageID int) error {
	log := logrus.WithFields(logrus.Fields{
		"edge_id": edgeID,
		"page_id": pageID,
	})
	if _, exists := im.edgeIndex[edgeID]; exists {
		log.Error("Edge ID already exists in index")
		return fmt.Errorf("%w: edge ID %d", ErrDuplicateID, edgeID)
	}
	im.edgeIndex[edgeID] = pageID
	log.Debug("Edge inserted into index")
	return nil
}

// SearchNode retrieves the page ID for a node
func (im *IndexManager) SearchNode(nodeID int64) (int, error) {
	pageID, exists := im.nodeIndex[nodeID]
	if !exists {
		logrus.WithField("node_id", nodeID).Debug("Node not found in index")
		return -1, fmt.Errorf("%w: node ID %d", ErrNotFound, nodeID)
	}
	return pageID, nil
}

// SearchEdge retrieves the page ID for an edge
func (im *IndexManager) SearchEdge(edgeID int64) (int, error) {
	pageID, exists := im.edgeIndex[edgeID]
	if !exists {
		logrus.WithField("edge_id", edgeID).Debug("Edge not found in index")
		return -1, fmt.Errorf("%w: edge ID %d", ErrNotFound, edgeID)
	}
	return pageID, nil
}

// DeleteNode removes a node from the primary index
func (im *IndexManager) DeleteNode(nodeID int64) error {
	if _, exists := im.nodeIndex[nodeID]; !exists {
		logrus.WithField("node_id", nodeID).Error("Node not found in index for deletion")
		return fmt.Errorf("%w: node ID %d", ErrNotFound, nodeID)
	}
	delete(im.nodeIndex, nodeID)
	return nil
}

// DeleteEdge removes an edge from the primary index
func (im *IndexManager) DeleteEdge(edgeID int64) error {
	if _, exists := im.edgeIndex[edgeID]; !exists {
		logrus.WithField("edge_id", edgeID).Error("Edge not found in index for deletion")
		return fmt.Errorf("%w: edge ID %d", ErrNotFound, edgeID)
	}
	delete(im.edgeIndex, edgeID)
	return nil
}

// NodeIDs returns all node IDs in the primary index
func (im *IndexManager) NodeIDs() []int64 {
	ids := make([]int64, 0, len(im.nodeIndex))
	for id := range im.nodeIndex {
		ids = append(ids, id)
	}
	return ids
}

// EdgeIDs returns all edge IDs in the primary index
func (im *IndexManager) EdgeIDs() []int64 {
	ids := make([]int64, 0, len(im.edgeIndex))
	for id := range im.edgeIndex {
		ids = append(ids, id)
	}
	return ids
}

// AppendLabel records a node under a label, keeping insertion order.
// Appending an ID already present is a no-op.
func (im *IndexManager) AppendLabel(label string, nodeID int64) {
	for _, id := range im.labelIndex[label] {
		if id == nodeID {
			return
		}
	}
	im.labelIndex[label] = append(im.labelIndex[label], nodeID)
}

// NodesWithLabel returns the node IDs recorded under a label, in insertion
// order. The returned slice is owned by the index.
func (im *IndexManager) NodesWithLabel(label string) []int64 {
	return im.labelIndex[label]
}

// ScrubLabels removes a node from every label bucket, dropping buckets that
// become empty
func (im *IndexManager) ScrubLabels(nodeID int64) {
	for label, ids := range im.labelIndex {
		kept := ids[:0]
		for _, id := range ids {
			if id != nodeID {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			delete(im.labelIndex, label)
		} else {
			im.labelIndex[label] = kept
		}
	}
}

// Labels returns all labels with at least one node, sorted
func (im *IndexManager) Labels() []string {
	labels := make([]string, 0, len(im.labelIndex))
	for label := range im.labelIndex {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
