package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Artifact is a compiled contract: its ABI definition and creation bytecode.
type Artifact struct {
	Name     string
	Abi      string
	Bytecode []byte
}

type combinedArtifact struct {
	ContractName string          `json:"contractName"`
	Abi          json.RawMessage `json:"abi"`
	Bytecode     json.RawMessage `json:"bytecode"`
}

// LoadArtifact reads a contract artifact. abiPath is either a plain .abi file
// (solc --abi output) or a combined json artifact (hardhat / foundry layout)
// carrying abi and bytecode. binPath optionally names a .bin file with the
// bytecode, if empty a .bin file next to a plain abi file is used when present.
func LoadArtifact(abiPath string, binPath string) (*Artifact, error) {
	data, err := os.ReadFile(abiPath)
	if err != nil {
		return nil, fmt.Errorf("error reading artifact %v: %w", abiPath, err)
	}

	artifact := &Artifact{
		Name: strings.TrimSuffix(filepath.Base(abiPath), filepath.Ext(abiPath)),
	}

	trimmed := strings.TrimSpace(string(data))
	switch {
	case strings.HasPrefix(trimmed, "["):
		artifact.Abi = trimmed
		if binPath == "" {
			candidate := strings.TrimSuffix(abiPath, filepath.Ext(abiPath)) + ".bin"
			if _, err := os.Stat(candidate); err == nil {
				binPath = candidate
			}
		}
	case strings.HasPrefix(trimmed, "{"):
		combined := &combinedArtifact{}
		if err := json.Unmarshal(data, combined); err != nil {
			return nil, fmt.Errorf("error decoding artifact %v: %w", abiPath, err)
		}
		if len(combined.Abi) == 0 {
			return nil, fmt.Errorf("artifact %v has no abi", abiPath)
		}
		if combined.ContractName != "" {
			artifact.Name = combined.ContractName
		}
		artifact.Abi = string(combined.Abi)

		bytecode, err := parseArtifactBytecode(combined.Bytecode)
		if err != nil {
			return nil, fmt.Errorf("artifact %v: %w", abiPath, err)
		}
		artifact.Bytecode = bytecode
	default:
		return nil, fmt.Errorf("artifact %v is neither an abi array nor a json artifact", abiPath)
	}

	if binPath != "" {
		binData, err := os.ReadFile(binPath)
		if err != nil {
			return nil, fmt.Errorf("error reading bytecode %v: %w", binPath, err)
		}
		bytecode, err := decodeBytecode(string(binData))
		if err != nil {
			return nil, fmt.Errorf("bytecode %v: %w", binPath, err)
		}
		artifact.Bytecode = bytecode
	}

	return artifact, nil
}

func parseArtifactBytecode(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var hexString string
	if err := json.Unmarshal(raw, &hexString); err == nil {
		return decodeBytecode(hexString)
	}

	var object struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(raw, &object); err != nil {
		return nil, fmt.Errorf("unsupported bytecode format")
	}
	return decodeBytecode(object.Object)
}

func decodeBytecode(hexString string) ([]byte, error) {
	hexString = strings.TrimSpace(hexString)
	if hexString == "" || hexString == "0x" {
		return nil, nil
	}
	if !strings.HasPrefix(hexString, "0x") {
		hexString = "0x" + hexString
	}
	return hexutil.Decode(hexString)
}
