package template

import "github.com/g960059/ttguide/internal/model"

const inferenceEnv = `cd {{ttMetalPath | quote}} && export LLAMA_DIR={{modelPath | quote}} && export PYTHONPATH={{ttMetalPath | quote}}`

// Builtins is the operation table of the hardware setup walkthrough.
func Builtins() []Template {
	return []Template{
		{
			Name:        "detect-hardware",
			Command:     "tt-smi",
			Channel:     model.ChannelMain,
			Description: "Detect Tenstorrent devices with tt-smi",
		},
		{
			Name:        "verify-installation",
			Command:     `cd {{ttMetalPath | quote}} && export PYTHONPATH={{ttMetalPath | quote}} && python3 -m ttnn.examples.usage.run_op_on_device`,
			Channel:     model.ChannelMain,
			Description: "Run a single ttnn op on the device to verify tt-metal",
		},
		{
			Name:        "set-hf-token",
			Command:     `export HF_TOKEN={{token | quote}}`,
			Channel:     model.ChannelMain,
			Description: "Export the Hugging Face access token in the main terminal",
			Secrets:     []string{"token"},
		},
		{
			Name:        "login-hf",
			Command:     `huggingface-cli login --token "$HF_TOKEN"`,
			Channel:     model.ChannelMain,
			Description: "Log in to Hugging Face with the exported token",
		},
		{
			Name:        "download-model",
			Command:     `mkdir -p {{modelDir | quote}} && huggingface-cli download {{modelRepo | quote}} --local-dir {{modelDir | quote}}`,
			Channel:     model.ChannelMain,
			Description: "Download the model weights from Hugging Face",
		},
		{
			Name:        "run-inference",
			Command:     inferenceEnv + ` && pytest models/tt_transformers/demo/simple_text_demo.py -k 'performance and batch-1'`,
			Channel:     model.ChannelMain,
			Description: "Run the tt-metal text demo once",
		},
		{
			Name:        "install-flask",
			Command:     "pip install flask",
			Channel:     model.ChannelMain,
			Description: "Install Flask for the HTTP API server",
		},
		{
			Name:        "start-interactive-chat",
			Command:     inferenceEnv + ` && python3 {{scriptsDir | quote}}/tt-chat.py`,
			Channel:     model.ChannelMain,
			Description: "Start the interactive chat REPL",
		},
		{
			Name:        "start-api-server",
			Command:     inferenceEnv + ` && python3 {{scriptsDir | quote}}/tt-api-server.py --port {{apiPort | quote}}`,
			Channel:     model.ChannelServer,
			Description: "Start the Flask API server in the server terminal",
		},
		{
			Name:        "test-api-server",
			Command:     `curl -s -X POST http://localhost:{{apiPort}}/chat -H 'Content-Type: application/json' -d '{"prompt": "What is machine learning?"}'`,
			Channel:     model.ChannelMain,
			Description: "Send a test prompt to the API server",
		},
		{
			Name:        "clone-vllm",
			Command:     `git clone --branch dev https://github.com/tenstorrent/vllm.git {{vllmPath | quote}}`,
			Channel:     model.ChannelMain,
			Description: "Clone the Tenstorrent vLLM fork",
		},
		{
			Name:        "install-vllm",
			Command:     `cd {{vllmPath | quote}} && python3 -m venv venv && source venv/bin/activate && pip install -e .`,
			Channel:     model.ChannelMain,
			Description: "Create a virtualenv and install vLLM",
		},
		{
			Name:        "start-vllm-server",
			Command:     `cd {{ttMetalPath | quote}} && export PYTHONPATH={{ttMetalPath | quote}} && source {{vllmPath | quote}}/venv/bin/activate && python3 {{scriptsDir | quote}}/start-vllm-server.py --model {{modelDir | quote}} --host 0.0.0.0 --port {{vllmPort | quote}}`,
			Channel:     model.ChannelServer,
			Description: "Start the OpenAI-compatible vLLM server",
		},
		{
			Name:        "test-vllm-server",
			Command:     `curl -s http://localhost:{{vllmPort}}/v1/models`,
			Channel:     model.ChannelMain,
			Description: "List the models served by vLLM",
		},
	}
}

func DefaultRegistry() *Registry {
	return MustNewRegistry(Builtins()...)
}
