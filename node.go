package oxyfbx

// Node is one Model-class element placed in the scene hierarchy: its
// local transform, parent, and children.
type Node struct {
	Element *Element

	Parent   *Node
	Children []*Node

	Translation [3]float64
	Rotation    [3]float64 // Euler degrees, FBX's default rotation order (XYZ)
	Scaling     [3]float64

	GeometricTranslation [3]float64
	GeometricRotation    [3]float64
	GeometricScaling     [3]float64

	Visible bool
}

func newNodeFromProps(el *Element) *Node {
	n := &Node{Element: el, Visible: true}
	n.Translation = el.Props.Vector3("Lcl Translation", [3]float64{0, 0, 0})
	n.Rotation = el.Props.Vector3("Lcl Rotation", [3]float64{0, 0, 0})
	n.Scaling = el.Props.Vector3("Lcl Scaling", [3]float64{1, 1, 1})
	n.GeometricTranslation = el.Props.Vector3("GeometricTranslation", [3]float64{0, 0, 0})
	n.GeometricRotation = el.Props.Vector3("GeometricRotation", [3]float64{0, 0, 0})
	n.GeometricScaling = el.Props.Vector3("GeometricScaling", [3]float64{1, 1, 1})
	if p, ok := el.Props.Find("Visibility"); ok {
		n.Visible = p.Real[0] != 0
	}
	return n
}
