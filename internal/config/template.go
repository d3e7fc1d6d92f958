package config

// Template is written when the config command creates a new file.
const Template = `# Synthesis engine: piper or mock
engine: "piper"

# Default voice
voice:
  # Path to a piper .onnx model
  model: ""
  # Voice config, defaults to <model>.json
  # config: "/path/to/model.onnx.json"
  # Speaking rate between 0.5 and 2.0
  speed: 1.0

# Reusable sample buffers
pool:
  max_buffers: 10

# Loaded voice models
cache:
  max_entries: 3
  # Footprint bound, 0 disables it
  max_memory: "1.5GB"
  # Unload models unused for this long, 0 keeps them
  idle_timeout: "0s"
  janitor_interval: "1m"

# Chunking of long text (sizes in characters)
stream:
  max_chunk_size: 500
  min_chunk_size: 50
  split_on_sentences: true
  split_on_paragraphs: true
  allow_cancellation: true
  respect_abbreviations: false

# Input handling
text:
  max_length: 100000
  # Treat input as markdown
  markdown: false

# Piper engine
piper:
  binary: "piper"
  speaker_id: 0
  length_scale: 1.0
  noise_scale: 0.667
  noise_w: 0.8
  sentence_silence: "200ms"
  timeout: "30s"
`
