package contract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Mutability is the declared state mutability of an ABI function.
type Mutability string

const (
	MutabilityPure       Mutability = "pure"
	MutabilityView       Mutability = "view"
	MutabilityNonPayable Mutability = "nonpayable"
	MutabilityPayable    Mutability = "payable"
)

// ReadOnly reports whether calls with this mutability are served by eth_call.
func (m Mutability) ReadOnly() bool {
	return m == MutabilityPure || m == MutabilityView
}

func (m Mutability) String() string {
	return string(m)
}

// ABI is a parsed contract interface with its functions and events grouped by
// their solidity name, so overloads share one entry.
type ABI struct {
	abi.ABI

	json      string
	functions map[string][]abi.Method
	events    map[string][]abi.Event
}

var abiCache, _ = lru.New[common.Hash, *ABI](128)

// ParseABI parses a JSON ABI definition. Parsed definitions are cached by
// content hash and shared, they are never modified after parsing.
func ParseABI(abiJson string) (*ABI, error) {
	cacheKey := crypto.Keccak256Hash([]byte(abiJson))
	if cached, ok := abiCache.Get(cacheKey); ok {
		return cached, nil
	}

	parsed, err := abi.JSON(strings.NewReader(abiJson))
	if err != nil {
		return nil, &BindingError{Reason: fmt.Sprintf("invalid abi: %v", err)}
	}

	contractAbi, err := NewABI(parsed)
	if err != nil {
		return nil, err
	}
	contractAbi.json = abiJson

	abiCache.Add(cacheKey, contractAbi)
	return contractAbi, nil
}

// MustParseABI is like ParseABI but panics on error. Used for embedded ABIs.
func MustParseABI(abiJson string) *ABI {
	contractAbi, err := ParseABI(abiJson)
	if err != nil {
		panic(err)
	}
	return contractAbi
}

// NewABI groups the entries of an already parsed go-ethereum ABI.
func NewABI(parsed abi.ABI) (*ABI, error) {
	if len(parsed.Methods) == 0 && len(parsed.Events) == 0 && !parsed.HasFallback() && !parsed.HasReceive() && parsed.Constructor.String() == "" {
		return nil, &BindingError{Reason: "abi has no entries"}
	}

	contractAbi := &ABI{
		ABI:       parsed,
		functions: map[string][]abi.Method{},
		events:    map[string][]abi.Event{},
	}

	for _, method := range parsed.Methods {
		contractAbi.functions[method.RawName] = append(contractAbi.functions[method.RawName], method)
	}
	for _, event := range parsed.Events {
		contractAbi.events[event.RawName] = append(contractAbi.events[event.RawName], event)
	}

	// go-ethereum renames overloads to foo, foo0, foo1 in declaration order
	for _, overloads := range contractAbi.functions {
		sort.Slice(overloads, func(i, j int) bool {
			return declarationLess(overloads[i].Name, overloads[j].Name)
		})
	}
	for _, overloads := range contractAbi.events {
		sort.Slice(overloads, func(i, j int) bool {
			return declarationLess(overloads[i].Name, overloads[j].Name)
		})
	}

	return contractAbi, nil
}

func declarationLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// JSON returns the source definition, if the ABI was parsed from JSON.
func (a *ABI) JSON() string {
	return a.json
}

// FunctionNames returns the distinct function names in sorted order.
func (a *ABI) FunctionNames() []string {
	return sortedKeys(a.functions)
}

// EventNames returns the distinct event names in sorted order.
func (a *ABI) EventNames() []string {
	return sortedKeys(a.events)
}

// Overloads returns all functions declared under name, in declaration order.
func (a *ABI) Overloads(name string) []abi.Method {
	return a.functions[name]
}

// EventOverloads returns all events declared under name.
func (a *ABI) EventOverloads(name string) []abi.Event {
	return a.events[name]
}

// MethodMutability classifies a method, including legacy ABIs that only carry
// the constant / payable flags.
func MethodMutability(method abi.Method) Mutability {
	switch Mutability(method.StateMutability) {
	case MutabilityPure, MutabilityView, MutabilityNonPayable, MutabilityPayable:
		return Mutability(method.StateMutability)
	}
	if method.Constant {
		return MutabilityView
	}
	if method.Payable {
		return MutabilityPayable
	}
	return MutabilityNonPayable
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortStrings(values []string) []string {
	sort.Strings(values)
	return values
}
