package node

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	cfg "github.com/tendermint/tendermint/config"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/libs/service"
	"github.com/tendermint/tendermint/p2p"
	"github.com/tendermint/tendermint/p2p/conn"
	rpcserver "github.com/tendermint/tendermint/rpc/jsonrpc/server"
	"github.com/tendermint/tendermint/version"

	"permachain/consensus"
	"permachain/libs/metric"
	"permachain/mempool"
	"permachain/privval"
	"permachain/rpc"
	"permachain/state"
	"permachain/store"
	"permachain/types"
)

// Provider builds a node from config; cmd uses it so tests can swap the
// constructor.
type Provider func(*cfg.Config, log.Logger) (*Node, error)

// Node ties the chain services together: block store, mempool, consensus,
// the p2p switch they gossip through and the rpc server.
type Node struct {
	service.BaseService

	// config
	config     *cfg.Config
	genesisDoc *types.GenesisDoc

	// network
	transport *p2p.MultiplexTransport
	sw        *p2p.Switch // p2p connections
	nodeInfo  p2p.NodeInfo
	nodeKey   *p2p.NodeKey // our node privkey

	// services
	blockStore       store.Store
	mempool          *mempool.ListMempool
	mempoolReactor   *mempool.Reactor
	consensusState   *consensus.ConsensusState
	consensusReactor *consensus.Reactor
	metricSet        *metric.MetricSet
	rpcListeners     []net.Listener
}

type Option func(*Node)

// DefaultNewNode loads the node key, validator key and genesis doc from the
// locations named in config and builds a node on them.
func DefaultNewNode(config *cfg.Config, logger log.Logger) (*Node, error) {
	nodeKey, err := p2p.LoadOrGenNodeKey(config.NodeKeyFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load or gen node key %s: %w", config.NodeKeyFile(), err)
	}

	genDoc, err := types.GenesisDocFromFile(config.GenesisFile())
	if err != nil {
		return nil, err
	}

	privVal := privval.LoadOrGenFilePV(config.PrivValidatorKeyFile())

	return NewNode(config, privVal, nodeKey, genDoc, logger)
}

// loadState rebuilds state from the store head, or seeds the store with the
// genesis block when it is empty.
func loadState(blockStore store.Store, genDoc *types.GenesisDoc) (state.State, error) {
	head := blockStore.Head()
	if head == nil {
		st, genesisBlock := state.MakeGenesisState(genDoc)
		if err := blockStore.SaveGenesisBlock(genesisBlock); err != nil {
			return state.State{}, fmt.Errorf("failed to save genesis block: %w", err)
		}
		return st, nil
	}

	return state.State{
		ChainID:         genDoc.ChainID,
		Validators:      genDoc.ValidatorSet(),
		LastBlockHeight: head.Height,
		LastBlockHash:   head.Hash(),
		LastStateHash:   head.StateHash,
		LastBlockTime:   head.Time,
	}, nil
}

func createTransport(
	nodeInfo p2p.NodeInfo,
	nodeKey *p2p.NodeKey,
) *p2p.MultiplexTransport {
	return p2p.NewMultiplexTransport(nodeInfo, *nodeKey, conn.DefaultMConnConfig())
}

func createSwitch(config *cfg.Config,
	transport p2p.Transport,
	mempoolReactor *mempool.Reactor,
	consensusReactor *consensus.Reactor,
	nodeInfo p2p.NodeInfo,
	nodeKey *p2p.NodeKey,
	p2pLogger log.Logger) *p2p.Switch {

	sw := p2p.NewSwitch(config.P2P, transport)
	sw.SetLogger(p2pLogger)
	sw.AddReactor("MEMPOOL", mempoolReactor)
	sw.AddReactor("CONSENSUS", consensusReactor)

	sw.SetNodeInfo(nodeInfo)
	sw.SetNodeKey(nodeKey)

	p2pLogger.Info("P2P Node ID", "ID", nodeKey.ID(), "file", config.NodeKeyFile())
	return sw
}

func makeNodeInfo(
	config *cfg.Config,
	nodeKey *p2p.NodeKey,
	genDoc *types.GenesisDoc,
) (p2p.NodeInfo, error) {
	nodeInfo := p2p.DefaultNodeInfo{
		ProtocolVersion: p2p.NewProtocolVersion(
			8, // global
			11,
			0,
		),
		DefaultNodeID: nodeKey.ID(),
		Network:       genDoc.ChainID,
		Version:       version.TMCoreSemVer,
		Channels: []byte{
			mempool.MempoolChannel,
			consensus.StateChannel,
			consensus.DataChannel,
			consensus.VoteChannel,
			consensus.RequestChannel,
		},
		Moniker: config.Moniker,
		Other: p2p.DefaultNodeInfoOther{
			TxIndex:    "off",
			RPCAddress: config.RPC.ListenAddress,
		},
	}

	lAddr := config.P2P.ExternalAddress
	if lAddr == "" {
		lAddr = config.P2P.ListenAddress
	}
	nodeInfo.ListenAddr = lAddr

	err := nodeInfo.Validate()
	return nodeInfo, err
}

func NewNode(config *cfg.Config,
	privVal types.PrivValidator,
	nodeKey *p2p.NodeKey,
	genDoc *types.GenesisDoc,
	logger log.Logger,
	options ...Option) (*Node, error) {

	blockStore, err := store.NewGoLevelStore("chain", config.DBDir(), logger.With("module", "store"))
	if err != nil {
		return nil, err
	}

	st, err := loadState(blockStore, genDoc)
	if err != nil {
		return nil, err
	}

	mem := mempool.NewListMempool(config.Mempool, st.NextHeight())
	mempoolReactor := mempool.NewReactor(mem)
	mempoolReactor.SetLogger(logger.With("module", "mempool"))

	blockExec := state.NewBlockExecutor(blockStore, mem)

	consensusState := consensus.NewConsensusState(
		config.Consensus,
		blockExec,
		blockStore,
		mem,
		st,
		consensus.SetPrivValidator(privVal),
	)
	consensusState.SetLogger(logger.With("module", "consensus"))
	consensusReactor := consensus.NewReactor(consensusState)
	consensusReactor.SetLogger(logger.With("module", "consensus"))

	metricSet := metric.NewMetricSet()
	if err := metricSet.SetMetrics("consensus", consensusState); err != nil {
		return nil, err
	}
	if err := metricSet.SetMetrics("mempool", mem.Metric()); err != nil {
		return nil, err
	}

	p2pLogger := logger.With("module", "p2p")

	nodeInfo, err := makeNodeInfo(config, nodeKey, genDoc)
	if err != nil {
		return nil, err
	}

	transport := createTransport(nodeInfo, nodeKey)
	sw := createSwitch(
		config, transport, mempoolReactor, consensusReactor, nodeInfo, nodeKey, p2pLogger,
	)

	node := &Node{
		config:     config,
		genesisDoc: genDoc,

		transport: transport,
		sw:        sw,
		nodeInfo:  nodeInfo,
		nodeKey:   nodeKey,

		blockStore:       blockStore,
		mempool:          mem,
		mempoolReactor:   mempoolReactor,
		consensusState:   consensusState,
		consensusReactor: consensusReactor,
		metricSet:        metricSet,
	}

	node.BaseService = *service.NewBaseService(logger, "Node", node)
	for _, option := range options {
		option(node)
	}

	return node, nil
}

func (n *Node) OnStart() error {
	if n.config.RPC.ListenAddress != "" {
		listeners, err := n.startRPC()
		if err != nil {
			return err
		}
		n.rpcListeners = listeners
	}

	addr, err := p2p.NewNetAddressString(p2p.IDAddressString(n.nodeKey.ID(), n.config.P2P.ListenAddress))
	if err != nil {
		return err
	}
	if err := n.transport.Listen(*addr); err != nil {
		return err
	}

	// the switch starts both reactors, which starts consensus
	if err := n.sw.Start(); err != nil {
		return err
	}

	err = n.sw.DialPeersAsync(splitAndTrimEmpty(n.config.P2P.PersistentPeers, ",", " "))
	if err != nil {
		return fmt.Errorf("could not dial peers from persistent_peers field: %w", err)
	}

	return nil
}

func (n *Node) startRPC() ([]net.Listener, error) {
	rpc.SetEnvironment(&rpc.Environment{
		Mempool:   n.mempool,
		Consensus: n.consensusState,
		Store:     n.blockStore,
		MetricSet: n.metricSet,
	})

	rpcLogger := n.Logger.With("module", "rpc-server")
	config := rpcserver.DefaultConfig()

	mux := http.NewServeMux()
	wm := rpcserver.NewWebsocketManager(rpc.Routes)
	wm.SetLogger(rpcLogger.With("protocol", "websocket"))
	mux.HandleFunc("/websocket", wm.WebsocketHandler)
	rpcserver.RegisterRPCFuncs(mux, rpc.Routes, rpcLogger)

	listener, err := rpcserver.Listen(n.config.RPC.ListenAddress, config)
	if err != nil {
		return nil, err
	}

	go func() {
		if err := rpcserver.Serve(listener, mux, rpcLogger, config); err != nil {
			rpcLogger.Error("rpc server stopped", "err", err)
		}
	}()

	return []net.Listener{listener}, nil
}

func (n *Node) OnStop() {
	if err := n.sw.Stop(); err != nil {
		n.Logger.Error("failed to stop switch", "err", err)
	}
	if err := n.transport.Close(); err != nil {
		n.Logger.Error("failed to close transport", "err", err)
	}
	for _, l := range n.rpcListeners {
		if err := l.Close(); err != nil {
			n.Logger.Error("failed to close rpc listener", "err", err)
		}
	}
	if err := n.blockStore.Close(); err != nil {
		n.Logger.Error("failed to close block store", "err", err)
	}
}

func (n *Node) Switch() *p2p.Switch {
	return n.sw
}

func (n *Node) NodeInfo() p2p.NodeInfo {
	return n.nodeInfo
}

func (n *Node) GenesisDoc() *types.GenesisDoc {
	return n.genesisDoc
}

func (n *Node) ConsensusState() *consensus.ConsensusState {
	return n.consensusState
}

// splitAndTrimEmpty slices s into all subslices separated by sep, trims
// cutset from each and drops the empty ones.
func splitAndTrimEmpty(s, sep, cutset string) []string {
	if s == "" {
		return []string{}
	}

	spl := strings.Split(s, sep)
	nonEmptyStrings := make([]string, 0, len(spl))
	for i := 0; i < len(spl); i++ {
		element := strings.Trim(spl[i], cutset)
		if element != "" {
			nonEmptyStrings = append(nonEmptyStrings, element)
		}
	}
	return nonEmptyStrings
}
