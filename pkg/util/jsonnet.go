package util

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/google/go-jsonnet"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// EvaluateJsonnet evaluates a Jsonnet snippet, where all of the
// environment variables of the current process are available through
// std.extVar(). The resulting JSON document is returned.
func EvaluateJsonnet(filename string, snippet []byte) ([]byte, error) {
	vm := jsonnet.MakeVM()
	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			return nil, status.Errorf(codes.InvalidArgument, "Invalid environment variable: %#v", env)
		}
		vm.ExtVar(parts[0], parts[1])
	}

	jsonnetOutput, err := vm.EvaluateAnonymousSnippet(filename, string(snippet))
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "Failed to evaluate configuration: %s", err)
	}
	return []byte(jsonnetOutput), nil
}

// UnmarshalConfiguration evaluates a Jsonnet snippet and unmarshals the
// output into a configuration struct. Fields in the output that are not
// present in the struct cause the configuration to be rejected, so that
// typos don't go unnoticed.
func UnmarshalConfiguration(filename string, snippet []byte, configuration interface{}) error {
	jsonOutput, err := EvaluateJsonnet(filename, snippet)
	if err != nil {
		return err
	}

	decoder := json.NewDecoder(bytes.NewReader(jsonOutput))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(configuration); err != nil {
		return status.Errorf(codes.InvalidArgument, "Failed to unmarshal configuration: %s", err)
	}
	return nil
}

// UnmarshalConfigurationFromFile reads a Jsonnet file, evaluates it and
// unmarshals the output into a configuration struct. The path "-"
// causes the configuration to be read from stdin.
func UnmarshalConfigurationFromFile(path string, configuration interface{}) error {
	var jsonnetInput []byte
	var err error
	if path == "-" {
		jsonnetInput, err = io.ReadAll(os.Stdin)
	} else {
		jsonnetInput, err = os.ReadFile(path)
	}
	if err != nil {
		return StatusWrapWithCode(err, codes.InvalidArgument, "Failed to read file contents")
	}
	return UnmarshalConfiguration(path, jsonnetInput, configuration)
}
