// Package relayer serves the read-only query surface relayers consume:
// blocks, depth snapshots, catchup state and futures views, over JSON HTTP
// plus a websocket block stream. Everything reads from the post-process
// store or controller read methods; the relayer never mutates state.
package relayer

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/gdex-labs/gdex/pkg/storage"
	"github.com/gdex-labs/gdex/pkg/types"
	"github.com/gdex-labs/gdex/pkg/validator"
)

// MaxDepthLevels caps the depth query; requests beyond it are clamped at
// the API boundary.
const MaxDepthLevels = 100

const blockCacheSize = 256

// Server is the read-only relayer RPC.
type Server struct {
	state  *validator.State
	store  *storage.PostProcessStore
	logger *zap.SugaredLogger

	blockCache *lru.Cache[uint64, *types.Block]

	hub *wsHub
}

func NewServer(state *validator.State, logger *zap.SugaredLogger) *Server {
	cache, _ := lru.New[uint64, *types.Block](blockCacheSize)
	return &Server{
		state:      state,
		store:      state.Store,
		logger:     logger,
		blockCache: cache,
		hub:        newWSHub(logger),
	}
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/block_info/latest", s.handleLatestBlockInfo).Methods(http.MethodGet)
	r.HandleFunc("/block_info/{number:[0-9]+}", s.handleBlockInfo).Methods(http.MethodGet)
	r.HandleFunc("/block/{number:[0-9]+}", s.handleBlock).Methods(http.MethodGet)
	r.HandleFunc("/orderbook_depth/{pair}", s.handleOrderbookDepth).Methods(http.MethodGet)
	r.HandleFunc("/catchup_state/latest", s.handleLatestCatchupState).Methods(http.MethodGet)
	r.HandleFunc("/futures/marketplaces", s.handleFuturesMarketplaces).Methods(http.MethodGet)
	r.HandleFunc("/futures/user/{admin}/{pubkey}", s.handleFuturesUser).Methods(http.MethodGet)
	r.HandleFunc("/metrics/latest", s.handleMetrics).Methods(http.MethodGet)
	r.HandleFunc("/ws/blocks", s.hub.handleSubscribe)
	return cors.AllowAll().Handler(r)
}

// Serve runs the HTTP server and the websocket block feed until the
// listener fails.
func (s *Server) Serve(addr string) error {
	go s.hub.watchBlocks(s.store)
	s.logger.Infow("relayer_rpc_listening", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func (s *Server) handleLatestBlockInfo(w http.ResponseWriter, _ *http.Request) {
	info, err := s.store.ReadLastBlockInfo()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if info == nil {
		writeError(w, http.StatusNotFound, "no blocks yet")
		return
	}
	writeJSON(w, http.StatusOK, blockInfoResponse(info))
}

func (s *Server) handleBlockInfo(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.ParseUint(mux.Vars(r)["number"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad block number")
		return
	}
	info, err := s.store.ReadBlockInfo(n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if info == nil {
		writeError(w, http.StatusNotFound, "unknown block")
		return
	}
	writeJSON(w, http.StatusOK, blockInfoResponse(info))
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.ParseUint(mux.Vars(r)["number"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad block number")
		return
	}
	block, ok := s.blockCache.Get(n)
	if !ok {
		block, err = s.store.ReadBlock(n)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if block == nil {
			writeError(w, http.StatusNotFound, "unknown block")
			return
		}
		s.blockCache.Add(n, block)
	}
	writeJSON(w, http.StatusOK, blockResponse(n, block))
}

func (s *Server) handleOrderbookDepth(w http.ResponseWriter, r *http.Request) {
	pair := mux.Vars(r)["pair"]
	levels := MaxDepthLevels
	if q := r.URL.Query().Get("depth"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "bad depth")
			return
		}
		if v < levels {
			levels = v
		}
	}
	depth, err := s.store.ReadOrderbookDepth(pair)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if depth == nil {
		writeError(w, http.StatusNotFound, "unknown pair")
		return
	}
	clamped := *depth
	if len(clamped.Bids) > levels {
		clamped.Bids = clamped.Bids[:levels]
	}
	if len(clamped.Asks) > levels {
		clamped.Asks = clamped.Asks[:levels]
	}
	writeJSON(w, http.StatusOK, depthResponse(pair, &clamped))
}

func (s *Server) handleLatestCatchupState(w http.ResponseWriter, _ *http.Request) {
	state, err := s.store.ReadLatestCatchupState()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if state == nil {
		writeError(w, http.StatusNotFound, "no catchup state yet")
		return
	}
	resp := CatchupStateResponse{BlockNumber: state.BlockNumber}
	for _, blob := range state.State {
		resp.State = append(resp.State, hexutil.Bytes(blob))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFuturesMarketplaces(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, marketplaceResponses(s.state.Router.FuturesController.Marketplaces()))
}

func (s *Server) handleFuturesUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	admin, err := parsePubKey(vars["admin"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad admin key")
		return
	}
	user, err := parsePubKey(vars["pubkey"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad user key")
		return
	}
	view, err := s.state.Router.FuturesController.User(admin, user)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, futuresUserResponse(view))
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	families, err := s.state.Metrics.Registry().Gather()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := MetricsResponse{Metrics: make(map[string]float64, len(families))}
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				out.Metrics[fam.GetName()] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out.Metrics[fam.GetName()] = m.GetGauge().GetValue()
			}
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func parsePubKey(s string) (types.AccountPubKey, error) {
	raw, err := hexutil.Decode(s)
	if err != nil {
		return types.AccountPubKey{}, err
	}
	return types.PubKeyFromBytes(raw)
}
