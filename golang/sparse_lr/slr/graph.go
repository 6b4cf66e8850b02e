package slr

import (
	"fmt"
	"math"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"gonum.org/v1/gonum/mat"
)

//Interaction is an off diagonal entry of the weighted covariance matrix. I < J, coordinate 0 is the intercept.
type Interaction struct {
	I, J   int
	Weight float64
}

//CovarianceGraph lists the coordinate pairs whose absolute weighted covariance exceeds threshold,
//strongest first.
func CovarianceGraph(cov mat.Matrix, threshold float64) []Interaction {
	n, _ := cov.Dims()
	var interactions []Interaction
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if w := cov.At(i, j); math.Abs(w) > threshold {
				interactions = append(interactions, Interaction{I: i, J: j, Weight: w})
			}
		}
	}
	sort.SliceStable(interactions, func(a, b int) bool {
		return math.Abs(interactions[a].Weight) > math.Abs(interactions[b].Weight)
	})
	return interactions
}

func coordinateName(j int) string {
	if j == 0 {
		return "intercept"
	}
	return fmt.Sprintf("f_%d", j-1)
}

//DrawCovarianceGraph builds a graphviz graph of the interactions. The caller closes both returned objects.
func DrawCovarianceGraph(interactions []Interaction) (*graphviz.Graphviz, *cgraph.Graph, error) {
	graphViz := graphviz.New()
	graph, err := graphViz.Graph()
	if err != nil {
		return nil, nil, errors.Wrap(err, "create graph")
	}

	nodes := make(map[int]*cgraph.Node)
	node := func(j int) (*cgraph.Node, error) {
		if n, ok := nodes[j]; ok {
			return n, nil
		}
		n, err := graph.CreateNode(coordinateName(j))
		if err != nil {
			return nil, errors.Wrapf(err, "node %d", j)
		}
		if j == 0 {
			n.Set("shape", "box")
		}
		nodes[j] = n
		return n, nil
	}

	for k, interaction := range interactions {
		from, err := node(interaction.I)
		if err != nil {
			return nil, nil, err
		}
		to, err := node(interaction.J)
		if err != nil {
			return nil, nil, err
		}
		edge, err := graph.CreateEdge(fmt.Sprint(k), from, to)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "edge %d", k)
		}
		edge.SetLabel(fmt.Sprintf("%6.4g", interaction.Weight))
	}
	return graphViz, graph, nil
}

//RenderCovarianceGraph draws the interactions of cov above threshold into filename.
//figureType is one of png, svg or jpg.
func RenderCovarianceGraph(cov mat.Matrix, threshold float64, figureType, filename string) (err error) {
	graphvizType, ok := map[string]graphviz.Format{
		"png": graphviz.PNG,
		"svg": graphviz.SVG,
		"jpg": graphviz.JPG,
	}[figureType]
	if !ok {
		return errors.Wrapf(ErrInvalidParameter, "unknown figure type %q", figureType)
	}

	graphViz, graph, err := DrawCovarianceGraph(CovarianceGraph(cov, threshold))
	if err != nil {
		return err
	}
	defer func() {
		err = errors.CombineErrors(err, graph.Close())
		err = errors.CombineErrors(err, graphViz.Close())
	}()
	return errors.Wrapf(graphViz.RenderFilename(graph, graphvizType, filename), "render %s", filename)
}
