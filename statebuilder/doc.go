/*
	Package statebuilder builds viewer states: layers of imagery, segmentation and
	annotations with their sources, coordinate spaces and view parameters, serialized
	into the JSON document read by the viewer.

	Layers may be built as templates holding DataMap placeholders that are filled later
	through WithDatamap or Map.  A ViewerState memoizes its serialized form, which is
	rebuilt after any setter changes a value.  Instances are not safe for concurrent
	mutation, but the copies returned by WithDatamap are fully independent.
*/
package statebuilder
