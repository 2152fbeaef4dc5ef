package contract

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"
)

// Reserved names of the fallback and receive entries in a handle's namespace.
const (
	FallbackName = "fallback"
	ReceiveName  = "receive"
)

// CallOpts customizes a single invocation of a bound call.
type CallOpts struct {
	Txn         *TxnOverrides     // write path: transaction field overrides
	PrivateKey  *ecdsa.PrivateKey // write path: signer, nil uses the binder default
	ResultMode  ResultMode        // write path: empty uses the binder default
	BlockNumber *big.Int          // read path: nil queries the latest block
}

// BoundCall is one function name of a contract handle, with every overload
// declared under that name and the dispatch path selected at bind time.
type BoundCall struct {
	name       string
	mutability Mutability
	overloads  []abi.Method
	path       dispatcher
	raw        bool // fallback / receive: args are raw calldata
}

func (c *BoundCall) Name() string {
	return c.name
}

func (c *BoundCall) Mutability() Mutability {
	return c.mutability
}

// ReadOnly reports whether the call is dispatched through eth_call.
func (c *BoundCall) ReadOnly() bool {
	return c.mutability.ReadOnly()
}

// Overloads returns the ABI entries sharing this call's name.
func (c *BoundCall) Overloads() []abi.Method {
	return c.overloads
}

// Invoke calls the function with positional arguments and default options.
func (c *BoundCall) Invoke(ctx context.Context, args ...interface{}) (*Result, error) {
	return c.InvokeWith(ctx, nil, args...)
}

// InvokeWith calls the function with positional arguments.
func (c *BoundCall) InvokeWith(ctx context.Context, opts *CallOpts, args ...interface{}) (*Result, error) {
	if opts == nil {
		opts = &CallOpts{}
	}

	if c.raw {
		input, err := rawCalldata(args)
		if err != nil {
			return nil, err
		}
		var method abi.Method
		if len(c.overloads) > 0 {
			method = c.overloads[0]
		}
		return c.path.dispatch(ctx, method, input, nil, opts)
	}

	method, input, err := c.resolve(args)
	if err != nil {
		return nil, err
	}

	return c.path.dispatch(ctx, method, input, args, opts)
}

// InvokeNamed calls the overload whose parameter names match the keys of args.
func (c *BoundCall) InvokeNamed(ctx context.Context, opts *CallOpts, args map[string]interface{}) (*Result, error) {
	for _, method := range c.overloads {
		if len(method.Inputs) != len(args) {
			continue
		}

		positional := make([]interface{}, 0, len(args))
		for _, input := range method.Inputs {
			value, ok := args[input.Name]
			if !ok {
				break
			}
			positional = append(positional, value)
		}
		if len(positional) != len(method.Inputs) {
			continue
		}

		input, err := method.Inputs.Pack(positional...)
		if err != nil {
			continue
		}

		if opts == nil {
			opts = &CallOpts{}
		}
		return c.path.dispatch(ctx, method, append(append([]byte{}, method.ID...), input...), positional, opts)
	}

	return nil, fmt.Errorf("%w: %v with named arguments", ErrNoMatchingOverload, c.name)
}

func rawCalldata(args []interface{}) ([]byte, error) {
	switch len(args) {
	case 0:
		return nil, nil
	case 1:
		if data, ok := args[0].([]byte); ok {
			return data, nil
		}
	}
	return nil, fmt.Errorf("fallback calls accept a single []byte calldata argument")
}

// resolve picks the first overload, in declaration order, that packs args.
func (c *BoundCall) resolve(args []interface{}) (abi.Method, []byte, error) {
	var lastErr error
	for _, method := range c.overloads {
		input, err := method.Inputs.Pack(args...)
		if err != nil {
			lastErr = err
			continue
		}
		return method, append(append([]byte{}, method.ID...), input...), nil
	}

	if lastErr == nil {
		lastErr = errors.New("no overloads")
	}
	return abi.Method{}, nil, fmt.Errorf("%w: %v: %v", ErrNoMatchingOverload, c.name, lastErr)
}

// dispatcher is the strategy a bound call routes through. It is selected once
// per name when the handle is built.
type dispatcher interface {
	dispatch(ctx context.Context, method abi.Method, input []byte, args []interface{}, opts *CallOpts) (*Result, error)
}

// readPath serves pure and view functions with eth_call.
type readPath struct {
	handle *Handle
}

func (p *readPath) dispatch(ctx context.Context, method abi.Method, input []byte, args []interface{}, opts *CallOpts) (*Result, error) {
	h := p.handle
	if h.address == nil {
		return nil, ErrNotDeployed
	}

	callOpts := &bind.CallOpts{
		Context:     ctx,
		BlockNumber: opts.BlockNumber,
	}
	if key := h.env.signerKey(opts.PrivateKey); key != nil {
		callOpts.From = crypto.PubkeyToAddress(key.PublicKey)
	}

	var values []interface{}
	err := h.bound.Call(callOpts, &values, method.Name, args...)
	dispatchCounter.WithLabelValues("read").Inc()
	if err != nil {
		return nil, err
	}

	return &Result{
		Values: values,
	}, nil
}

// writePath serves nonpayable and payable functions with a signed transaction.
type writePath struct {
	handle  *Handle
	payable bool
}

func (p *writePath) dispatch(ctx context.Context, method abi.Method, input []byte, args []interface{}, opts *CallOpts) (*Result, error) {
	h := p.handle
	if h.address == nil {
		return nil, ErrNotDeployed
	}

	to := *h.address
	req := &TxRequest{
		To:   &to,
		Data: input,
	}
	opts.Txn.Apply(req)

	if !p.payable && req.Value != nil && req.Value.Sign() > 0 {
		return nil, fmt.Errorf("%w: %v", ErrNotPayable, methodLabel(method))
	}

	return h.env.transact(ctx, req, opts, "write")
}

// methodLabel names method in errors. Fallback and receive carry no signature.
func methodLabel(method abi.Method) string {
	switch {
	case method.Sig != "":
		return method.Sig
	case method.Type == abi.Fallback:
		return FallbackName
	case method.Type == abi.Receive:
		return ReceiveName
	}
	return method.Name
}

// missingFallback mirrors a contract without fallback function: every
// invocation fails.
type missingFallback struct{}

func (missingFallback) dispatch(context.Context, abi.Method, []byte, []interface{}, *CallOpts) (*Result, error) {
	return nil, ErrNoFallback
}
