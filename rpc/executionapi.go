package rpc

import (
	"context"
	"fmt"
	"math/big"
	"net/url"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/time/rate"

	"github.com/ethpandaops/chainaide/rpc/sshtunnel"
	"github.com/ethpandaops/chainaide/types"
)

var logger = logrus.StandardLogger().WithField("module", "rpc")

// ExecutionClient is a rate limited execution layer json-rpc client. It
// implements the go-ethereum bind.ContractBackend interface.
type ExecutionClient struct {
	name      string
	endpoint  string
	headers   map[string]string
	timeout   time.Duration
	limiter   *rate.Limiter
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	sshtunnel *sshtunnel.SSHTunnel
}

// NewExecutionClient is used to create a new execution client
func NewExecutionClient(cfg *types.EndpointConfig) (*ExecutionClient, error) {
	client := &ExecutionClient{
		name:     cfg.Name,
		endpoint: cfg.Url,
		headers:  cfg.Headers,
		timeout:  cfg.Timeout,
	}
	if client.name == "" {
		client.name = "default"
	}

	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	if cfg.Ssh != nil && cfg.Ssh.Host != "" {
		err := client.startTunnel(cfg.Ssh)
		if err != nil {
			return nil, err
		}
	}

	return client, nil
}

func (ec *ExecutionClient) startTunnel(sshcfg *types.EndpointSshConfig) error {
	// create ssh tunnel to remote host
	sshPort := 0
	if sshcfg.Port != "" {
		sshPort, _ = strconv.Atoi(sshcfg.Port)
	}
	if sshPort == 0 {
		sshPort = 22
	}
	sshEndpoint := fmt.Sprintf("%v@%v:%v", sshcfg.User, sshcfg.Host, sshPort)

	var sshAuth ssh.AuthMethod
	if sshcfg.Keyfile != "" {
		var err error
		sshAuth, err = sshtunnel.PrivateKeyFile(sshcfg.Keyfile)
		if err != nil {
			return fmt.Errorf("could not load ssh keyfile: %w", err)
		}
	} else {
		sshAuth = ssh.Password(sshcfg.Password)
	}

	hostKeyCallback, err := sshtunnel.HostKeyCallback(sshcfg.KnownHosts)
	if err != nil {
		return fmt.Errorf("could not load ssh known hosts: %w", err)
	}

	// get tunnel target from endpoint url
	endpointUrl, err := url.Parse(ec.endpoint)
	if err != nil {
		return fmt.Errorf("invalid rpc url: %w", err)
	}
	tunTarget, err := tunnelTarget(endpointUrl)
	if err != nil {
		return err
	}

	ec.sshtunnel = sshtunnel.NewSSHTunnel(sshEndpoint, sshAuth, hostKeyCallback, tunTarget)
	ec.sshtunnel.Log = logger.WithField("sshtun", sshcfg.Host)
	err = ec.sshtunnel.Start()
	if err != nil {
		return fmt.Errorf("could not start ssh tunnel: %w", err)
	}

	// override endpoint to use local tunnel end
	endpointUrl.Host = fmt.Sprintf("localhost:%v", ec.sshtunnel.Local.Port)
	ec.endpoint = endpointUrl.String()

	return nil
}

func tunnelTarget(endpointUrl *url.URL) (string, error) {
	host := endpointUrl.Hostname()
	if host == "" {
		return "", fmt.Errorf("rpc url has no host: %v", endpointUrl.String())
	}

	port := endpointUrl.Port()
	if port == "" {
		switch endpointUrl.Scheme {
		case "https", "wss":
			port = "443"
		default:
			port = "80"
		}
	}

	return fmt.Sprintf("%v:%v", host, port), nil
}

// Initialize dials the endpoint. It is a no-op on an initialized client.
func (ec *ExecutionClient) Initialize(ctx context.Context) error {
	if ec.ethClient != nil {
		return nil
	}

	rpcClient, err := rpc.DialContext(ctx, ec.endpoint)
	if err != nil {
		return err
	}

	for hKey, hVal := range ec.headers {
		rpcClient.SetHeader(hKey, hVal)
	}

	ec.rpcClient = rpcClient
	ec.ethClient = ethclient.NewClient(rpcClient)

	logger.WithField("client", ec.name).Debugf("connected to %v", ec.endpoint)
	return nil
}

// Close shuts down the connection and the ssh tunnel.
func (ec *ExecutionClient) Close() {
	if ec.ethClient != nil {
		ec.ethClient.Close()
		ec.ethClient = nil
		ec.rpcClient = nil
	}
	if ec.sshtunnel != nil {
		ec.sshtunnel.Stop()
	}
}

func (ec *ExecutionClient) GetName() string {
	return ec.name
}

// begin applies the rate limit and the call timeout for one rpc call.
func (ec *ExecutionClient) begin(ctx context.Context, method string) (context.Context, func(error), error) {
	if ec.ethClient == nil {
		return nil, nil, fmt.Errorf("execution client %v is not initialized", ec.name)
	}

	if ec.limiter != nil {
		if err := ec.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}
	}

	cancel := func() {}
	if ec.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, ec.timeout)
	}

	t0 := time.Now()
	return ctx, func(err error) {
		cancel()
		observeCall(method, t0, err)
		if err != nil {
			logger.WithField("client", ec.name).Tracef("RPC %v failed: %v", method, err)
		}
	}, nil
}

func (ec *ExecutionClient) GetClientVersion(ctx context.Context) (string, error) {
	ctx, done, err := ec.begin(ctx, "web3_clientVersion")
	if err != nil {
		return "", err
	}

	var result string
	err = ec.rpcClient.CallContext(ctx, &result, "web3_clientVersion")
	done(err)
	return result, err
}

func (ec *ExecutionClient) ChainID(ctx context.Context) (*big.Int, error) {
	ctx, done, err := ec.begin(ctx, "eth_chainId")
	if err != nil {
		return nil, err
	}

	chainId, err := ec.ethClient.ChainID(ctx)
	done(err)
	return chainId, err
}

func (ec *ExecutionClient) BlockNumber(ctx context.Context) (uint64, error) {
	ctx, done, err := ec.begin(ctx, "eth_blockNumber")
	if err != nil {
		return 0, err
	}

	number, err := ec.ethClient.BlockNumber(ctx)
	done(err)
	return number, err
}

func (ec *ExecutionClient) HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error) {
	ctx, done, err := ec.begin(ctx, "eth_getBlockByNumber")
	if err != nil {
		return nil, err
	}

	header, err := ec.ethClient.HeaderByNumber(ctx, number)
	done(err)
	return header, err
}

func (ec *ExecutionClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	ctx, done, err := ec.begin(ctx, "eth_getBalance")
	if err != nil {
		return nil, err
	}

	balance, err := ec.ethClient.BalanceAt(ctx, account, blockNumber)
	done(err)
	return balance, err
}

func (ec *ExecutionClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	ctx, done, err := ec.begin(ctx, "eth_getCode")
	if err != nil {
		return nil, err
	}

	code, err := ec.ethClient.CodeAt(ctx, account, blockNumber)
	done(err)
	return code, err
}

func (ec *ExecutionClient) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	ctx, done, err := ec.begin(ctx, "eth_getCode")
	if err != nil {
		return nil, err
	}

	code, err := ec.ethClient.PendingCodeAt(ctx, account)
	done(err)
	return code, err
}

func (ec *ExecutionClient) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	ctx, done, err := ec.begin(ctx, "eth_getTransactionCount")
	if err != nil {
		return 0, err
	}

	nonce, err := ec.ethClient.NonceAt(ctx, account, blockNumber)
	done(err)
	return nonce, err
}

func (ec *ExecutionClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	ctx, done, err := ec.begin(ctx, "eth_getTransactionCount")
	if err != nil {
		return 0, err
	}

	nonce, err := ec.ethClient.PendingNonceAt(ctx, account)
	done(err)
	return nonce, err
}

func (ec *ExecutionClient) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	ctx, done, err := ec.begin(ctx, "eth_call")
	if err != nil {
		return nil, err
	}

	result, err := ec.ethClient.CallContract(ctx, call, blockNumber)
	done(err)
	return result, err
}

func (ec *ExecutionClient) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	ctx, done, err := ec.begin(ctx, "eth_estimateGas")
	if err != nil {
		return 0, err
	}

	gas, err := ec.ethClient.EstimateGas(ctx, call)
	done(err)
	return gas, err
}

func (ec *ExecutionClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	ctx, done, err := ec.begin(ctx, "eth_gasPrice")
	if err != nil {
		return nil, err
	}

	price, err := ec.ethClient.SuggestGasPrice(ctx)
	done(err)
	return price, err
}

func (ec *ExecutionClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	ctx, done, err := ec.begin(ctx, "eth_maxPriorityFeePerGas")
	if err != nil {
		return nil, err
	}

	tip, err := ec.ethClient.SuggestGasTipCap(ctx)
	done(err)
	return tip, err
}

func (ec *ExecutionClient) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	ctx, done, err := ec.begin(ctx, "eth_sendRawTransaction")
	if err != nil {
		return err
	}

	err = ec.ethClient.SendTransaction(ctx, tx)
	done(err)
	return err
}

func (ec *ExecutionClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	ctx, done, err := ec.begin(ctx, "eth_getTransactionReceipt")
	if err != nil {
		return nil, err
	}

	receipt, err := ec.ethClient.TransactionReceipt(ctx, txHash)
	if err == ethereum.NotFound {
		// not mined yet is not a failed call
		done(nil)
		return nil, err
	}
	done(err)
	return receipt, err
}

func (ec *ExecutionClient) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]ethtypes.Log, error) {
	ctx, done, err := ec.begin(ctx, "eth_getLogs")
	if err != nil {
		return nil, err
	}

	logs, err := ec.ethClient.FilterLogs(ctx, query)
	done(err)
	return logs, err
}

// SubscribeFilterLogs is not rate limited, subscriptions need a websocket endpoint.
func (ec *ExecutionClient) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- ethtypes.Log) (ethereum.Subscription, error) {
	if ec.ethClient == nil {
		return nil, fmt.Errorf("execution client %v is not initialized", ec.name)
	}
	return ec.ethClient.SubscribeFilterLogs(ctx, query, ch)
}
