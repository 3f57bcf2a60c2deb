package workflow

// Project derives the execution request for g. Only id, type and the
// prompt/text/imagePath/imageData fields of each node are kept; results
// and labels never leave the editor. Edges pass through unchanged.
func Project(g Graph) ExecutionRequest {
	req := ExecutionRequest{
		Nodes: make([]ProjectedNode, 0, len(g.Nodes)),
		Edges: make([]Edge, len(g.Edges)),
	}
	copy(req.Edges, g.Edges)

	for _, n := range g.Nodes {
		pn := ProjectedNode{
			ID:   n.ID,
			Type: n.Type,
			Data: ProjectedData{
				Prompt:    n.Data.Prompt,
				Text:      n.Data.Text,
				ImagePath: n.Data.ImagePath,
			},
		}
		if n.Data.ImageData != "" {
			img := n.Data.ImageData
			pn.Data.ImageData = &img
		}
		req.Nodes = append(req.Nodes, pn)
	}
	return req
}
