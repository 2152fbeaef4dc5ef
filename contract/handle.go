package contract

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

// Backend is the chain access a handle needs for eth_call and log queries.
type Backend interface {
	bind.ContractCaller
	bind.ContractFilterer
}

// Options configures the defaults applied to every bound call.
type Options struct {
	PrivateKey *ecdsa.PrivateKey // default signer, may be nil
	ResultMode ResultMode        // default result mode of state-changing calls
}

// env is the shared environment handles are bound against. Only the options
// change after construction.
type env struct {
	backend  Backend
	executor *Executor
	logger   logrus.FieldLogger

	optsMutex sync.RWMutex
	opts      Options
}

func (e *env) options() Options {
	e.optsMutex.RLock()
	defer e.optsMutex.RUnlock()
	return e.opts
}

func (e *env) signerKey(override *ecdsa.PrivateKey) *ecdsa.PrivateKey {
	if override != nil {
		return override
	}
	return e.options().PrivateKey
}

func (e *env) transact(ctx context.Context, req *TxRequest, opts *CallOpts, path string) (*Result, error) {
	key := e.signerKey(opts.PrivateKey)
	if key != nil {
		req.From = crypto.PubkeyToAddress(key.PublicKey)
	}

	mode := opts.ResultMode
	if mode == "" {
		mode = e.options().ResultMode
	}

	result, err := e.executor.Execute(ctx, req, key, mode)
	dispatchCounter.WithLabelValues(path).Inc()
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"to":   req.To,
		"hash": result.Hash.Hex(),
		"mode": result.Mode,
	}).Debugf("submitted contract transaction")

	return result, nil
}

// Handle is a contract bound to an ABI and, once deployed, an address. Every
// function and event name of the ABI is reachable through Call and Event.
//
// A handle must not be rebound while other goroutines invoke its calls.
type Handle struct {
	env      *env
	abi      *ABI
	bytecode []byte
	address  *common.Address
	bound    *bind.BoundContract

	calls    map[string]*BoundCall
	events   map[string]*BoundEvent
	fallback *BoundCall
	receive  *BoundCall
}

func newHandle(e *env, contractAbi *ABI, bytecode []byte, address *common.Address) (*Handle, error) {
	if contractAbi == nil {
		return nil, &BindingError{Reason: "abi is required"}
	}

	h := &Handle{
		env:      e,
		abi:      contractAbi,
		bytecode: common.CopyBytes(bytecode),
	}
	if address != nil {
		addr := *address
		h.address = &addr
	}

	if err := h.build(); err != nil {
		return nil, err
	}
	return h, nil
}

// build populates the dispatch tables. It replaces the tables wholesale, so a
// failed build leaves the previous tables in place.
func (h *Handle) build() error {
	var address common.Address
	if h.address != nil {
		address = *h.address
	}

	calls := make(map[string]*BoundCall, len(h.abi.functions))
	for _, name := range h.abi.FunctionNames() {
		call, err := h.bindFunction(name)
		if err != nil {
			return err
		}
		calls[name] = call
	}

	events := make(map[string]*BoundEvent, len(h.abi.events))
	for _, name := range h.abi.EventNames() {
		// function and event names never collide in a well-formed abi
		if _, exists := calls[name]; exists {
			return &BindingError{Name: name, Reason: "name is used by a function and an event"}
		}
		events[name] = &BoundEvent{
			name:      name,
			overloads: h.abi.EventOverloads(name),
			handle:    h,
		}
	}

	fallback := &BoundCall{
		name:       FallbackName,
		mutability: MutabilityNonPayable,
		path:       missingFallback{},
		raw:        true,
	}
	if h.abi.HasFallback() {
		fallback = h.bindRaw(FallbackName)
	}

	receive := &BoundCall{
		name:       ReceiveName,
		mutability: MutabilityPayable,
		path:       missingFallback{},
		raw:        true,
	}
	if h.abi.HasReceive() {
		receive = h.bindRaw(ReceiveName)
	}

	h.bound = bind.NewBoundContract(address, h.abi.ABI, h.env.backend, nil, h.env.backend)
	h.calls = calls
	h.events = events
	h.fallback = fallback
	h.receive = receive

	return nil
}

func (h *Handle) bindFunction(name string) (*BoundCall, error) {
	overloads := h.abi.Overloads(name)
	if len(overloads) == 0 {
		return nil, &BindingError{Name: name, Reason: "the method abi is not found"}
	}

	// the first overload governs dispatch, all others must agree with it
	mutability := MethodMutability(overloads[0])
	for _, method := range overloads[1:] {
		if MethodMutability(method) != mutability {
			return nil, &BindingError{
				Name:   name,
				Reason: fmt.Sprintf("ambiguous overload mutability (%v vs %v)", mutability, MethodMutability(method)),
			}
		}
	}

	call := &BoundCall{
		name:       name,
		mutability: mutability,
		overloads:  overloads,
	}
	if mutability.ReadOnly() {
		call.path = &readPath{handle: h}
	} else {
		call.path = &writePath{handle: h, payable: mutability == MutabilityPayable}
	}

	return call, nil
}

func (h *Handle) bindRaw(name string) *BoundCall {
	method := h.abi.Fallback
	if name == ReceiveName {
		method = h.abi.Receive
	}
	mutability := MethodMutability(method)

	return &BoundCall{
		name:       name,
		mutability: mutability,
		overloads:  []abi.Method{method},
		path:       &writePath{handle: h, payable: mutability == MutabilityPayable},
		raw:        true,
	}
}

// ABI returns the contract interface. It is shared and must not be modified.
func (h *Handle) ABI() *ABI {
	return h.abi
}

func (h *Handle) Bytecode() []byte {
	return common.CopyBytes(h.bytecode)
}

// Address returns the bound contract address, if any.
func (h *Handle) Address() (common.Address, bool) {
	if h.address == nil {
		return common.Address{}, false
	}
	return *h.address, true
}

// Names returns every bound function and event name, sorted.
func (h *Handle) Names() []string {
	names := make([]string, 0, len(h.calls)+len(h.events))
	names = append(names, sortedKeys(h.calls)...)
	names = append(names, sortedKeys(h.events)...)
	return sortStrings(names)
}

// Call returns the bound call registered under name. The reserved names
// "fallback" and "receive" resolve to the fallback and receive entries.
func (h *Handle) Call(name string) (*BoundCall, bool) {
	switch name {
	case FallbackName:
		return h.fallback, true
	case ReceiveName:
		return h.receive, true
	}
	call, ok := h.calls[name]
	return call, ok
}

func (h *Handle) Event(name string) (*BoundEvent, bool) {
	event, ok := h.events[name]
	return event, ok
}

func (h *Handle) Fallback() *BoundCall {
	return h.fallback
}

func (h *Handle) Receive() *BoundCall {
	return h.receive
}

// Invoke calls the function registered under name with positional arguments.
func (h *Handle) Invoke(ctx context.Context, name string, args ...interface{}) (*Result, error) {
	return h.InvokeWith(ctx, name, nil, args...)
}

func (h *Handle) InvokeWith(ctx context.Context, name string, opts *CallOpts, args ...interface{}) (*Result, error) {
	call, ok := h.Call(name)
	if !ok {
		return nil, &BindingError{Name: name, Reason: "the method abi is not found"}
	}
	return call.InvokeWith(ctx, opts, args...)
}

// Rebind points the handle at a new address in place.
func (h *Handle) Rebind(address common.Address) error {
	previous := h.address
	h.address = &address
	if err := h.build(); err != nil {
		h.address = previous
		return err
	}
	return nil
}

// Clone returns an independent handle bound to the same abi, bytecode and
// address.
func (h *Handle) Clone() *Handle {
	clone, err := newHandle(h.env, h.abi, h.bytecode, h.address)
	if err != nil {
		// h was built from the same inputs
		panic(err)
	}
	return clone
}
