// Package oxyfbx loads FBX scene files (binary and ASCII) and Wavefront
// OBJ/MTL meshes into a single in-memory Scene: nodes, meshes, materials,
// textures, and keyframed animation curves.
//
// A load runs the same pipeline regardless of source format: a cancellable
// buffered byte source feeds a format-specific tokenizer that produces a
// generic node tree, which a property/element reader turns into typed
// objects, which a connection graph wires together, which the finalizer
// expands into dense, validated scene state.
//
//	scene, err := oxyfbx.LoadFile("model.fbx")
//	if err != nil {
//	    ...
//	}
//	for _, mesh := range scene.Meshes {
//	    ...
//	}
package oxyfbx
