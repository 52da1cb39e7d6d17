package tracing

// Well-known operation names emitted by the pipeline engine.
const (
	PipelineRunOperation      = "haystack.pipeline.run"
	AsyncPipelineRunOperation = "haystack.async_pipeline.run"
)

// Well-known tag keys. Declared once here so callers and backends never
// drift on the spelling.
const (
	PipelineInputKey   = "haystack.pipeline.input_data"
	PipelineOutputKey  = "haystack.pipeline.output_data"
	ComponentNameKey   = "haystack.component.name"
	ComponentTypeKey   = "haystack.component.type"
	ComponentInputKey  = "haystack.component.input"
	ComponentOutputKey = "haystack.component.output"
)
