// Package httpapi is the downstream HTTP surface described in
// SPEC_FULL.md §6: JSON request/response bodies over the C9 query
// operations, routed with chi the way erigon's own RPC layer is, with a
// request-id middleware and CORS handling grounded the same way.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wavesplatform/balance-history/internal/dictionary"
	"github.com/wavesplatform/balance-history/internal/distribution"
	"github.com/wavesplatform/balance-history/internal/query"
)

// errorCode is this service's HTTP-error code prefix, per SPEC_FULL.md §6
// ("error codes prefixed with a service code").
const errorCode = "WBH"

// Server wires the query surface onto a chi router.
type Server struct {
	surface *query.Surface
	log     *zap.SugaredLogger
	router  chi.Router
}

func New(surface *query.Surface, log *zap.SugaredLogger) *Server {
	s := &Server{surface: surface, log: log}
	s.router = s.buildRouter()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("X-Request-Id", uuid.New().String())
			next.ServeHTTP(w, req)
		})
	})
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}))

	r.Post("/balance_history", s.handleBalanceHistory)
	r.Get("/balance_history/address/{address}", s.handleBalanceHistoryByAddress)
	r.Get("/balance_history/aggregates/{address}/{asset_id}", s.handleAggregates)
	r.Get("/asset_distribution/{asset_id}/{height}", s.handleGetDistribution)
	r.Post("/asset_distribution/{asset_id}/{height}", s.handlePostDistribution)

	return r
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Code: errorCode + strconv.Itoa(status), Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// resolveHeightOrTimestamp parses the optional ?height= or ?timestamp=
// query parameters shared by the balance-history read endpoints.
func resolveHeightOrTimestamp(r *http.Request) (atHeight *int32, atTimestamp *time.Time, err error) {
	if h := r.URL.Query().Get("height"); h != "" {
		n, perr := strconv.ParseInt(h, 10, 32)
		if perr != nil {
			return nil, nil, perr
		}
		v := int32(n)
		atHeight = &v
	}
	if ts := r.URL.Query().Get("timestamp"); ts != "" {
		t, perr := time.Parse(time.RFC3339, ts)
		if perr != nil {
			return nil, nil, perr
		}
		atTimestamp = &t
	}
	return atHeight, atTimestamp, nil
}

type pairDTO struct {
	Address string `json:"address"`
	AssetID string `json:"asset_id"`
}

type balanceHistoryRequest struct {
	AddressAssetPairs []pairDTO `json:"address_asset_pairs"`
}

type balanceItemDTO struct {
	Address        string `json:"address"`
	AssetID        string `json:"asset_id"`
	Amount         string `json:"amount"`
	BlockHeight    int32  `json:"block_height"`
	BlockTimestamp int64  `json:"block_timestamp"`
}

type pageInfoDTO struct {
	LastCursor string `json:"last_cursor,omitempty"`
	HasNext    bool   `json:"has_next_page"`
}

type balanceHistoryResponse struct {
	Items    []balanceItemDTO `json:"items"`
	PageInfo pageInfoDTO      `json:"page_info"`
}

func toBalanceItems(results []query.BalanceResult) []balanceItemDTO {
	items := make([]balanceItemDTO, len(results))
	for i, r := range results {
		items[i] = balanceItemDTO{
			Address:        r.Address,
			AssetID:        r.AssetID,
			Amount:         r.Amount.String(),
			BlockHeight:    r.BlockHeight,
			BlockTimestamp: r.BlockTimestamp,
		}
	}
	return items
}

func (s *Server) handleBalanceHistory(w http.ResponseWriter, r *http.Request) {
	var req balanceHistoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.AddressAssetPairs) > query.MaxPairs {
		writeError(w, http.StatusBadRequest, "too many address/asset pairs")
		return
	}

	for _, p := range req.AddressAssetPairs {
		if !dictionary.ValidateBase58(p.Address) || !dictionary.ValidateBase58(p.AssetID) {
			writeError(w, http.StatusBadRequest, "address and asset_id must be base58")
			return
		}
	}

	atHeight, atTimestamp, err := resolveHeightOrTimestamp(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid height or timestamp")
		return
	}

	uid, err := s.surface.ResolveUID(r.Context(), atHeight, atTimestamp)
	if err != nil {
		s.log.Errorw("resolve uid", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	pairs := make([]query.Pair, len(req.AddressAssetPairs))
	for i, p := range req.AddressAssetPairs {
		pairs[i] = query.Pair{Address: p.Address, Asset: p.AssetID}
	}

	results, err := s.surface.BalancesByPairs(r.Context(), uid, pairs)
	if err != nil {
		s.log.Errorw("balances by pairs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, balanceHistoryResponse{Items: toBalanceItems(results)})
}

func (s *Server) handleBalanceHistoryByAddress(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	if !dictionary.ValidateBase58(address) {
		writeError(w, http.StatusBadRequest, "address must be base58")
		return
	}

	atHeight, atTimestamp, err := resolveHeightOrTimestamp(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid height or timestamp")
		return
	}

	uid, err := s.surface.ResolveUID(r.Context(), atHeight, atTimestamp)
	if err != nil {
		s.log.Errorw("resolve uid", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	results, err := s.surface.BalancesByAddress(r.Context(), uid, address)
	if err != nil {
		s.log.Errorw("balances by address", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, balanceHistoryResponse{Items: toBalanceItems(results)})
}

type aggregateItemDTO struct {
	DateStamp   string `json:"date_stamp"`
	AmountBegin string `json:"amount_begin"`
	AmountEnd   string `json:"amount_end"`
}

type aggregatesResponse struct {
	Items []aggregateItemDTO `json:"items"`
}

func (s *Server) handleAggregates(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	assetID := chi.URLParam(r, "asset_id")
	if !dictionary.ValidateBase58(address) || !dictionary.ValidateBase58(assetID) {
		writeError(w, http.StatusBadRequest, "address and asset_id must be base58")
		return
	}

	dateFrom := time.Unix(0, 0).UTC()
	dateTo := time.Now().UTC()
	if v := r.URL.Query().Get("date_from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date_from")
			return
		}
		dateFrom = t
	}
	if v := r.URL.Query().Get("date_to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date_to")
			return
		}
		dateTo = t
	}

	rows, err := s.surface.Aggregates(r.Context(), address, assetID, dateFrom, dateTo)
	if err != nil {
		s.log.Errorw("aggregates", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]aggregateItemDTO, len(rows))
	for i, row := range rows {
		items[i] = aggregateItemDTO{
			DateStamp:   row.DateStamp.Format("2006-01-02"),
			AmountBegin: row.AmountBegin.String(),
			AmountEnd:   row.AmountEnd.String(),
		}
	}
	writeJSON(w, http.StatusOK, aggregatesResponse{Items: items})
}

type distributionItemDTO struct {
	Rank    int64  `json:"rank"`
	Address string `json:"address"`
	Amount  string `json:"amount"`
	Height  int32  `json:"height"`
}

type distributionResponse struct {
	Items    []distributionItemDTO `json:"items"`
	PageInfo pageInfoDTO           `json:"page_info"`
}

func (s *Server) handleGetDistribution(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "asset_id")
	if !dictionary.ValidateBase58(assetID) {
		writeError(w, http.StatusBadRequest, "asset_id must be base58")
		return
	}
	height, err := strconv.ParseInt(chi.URLParam(r, "height"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid height")
		return
	}

	var after int64
	if v := r.URL.Query().Get("after"); v != "" {
		after, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid after cursor")
			return
		}
	}

	page, err := s.surface.Distribution(r.Context(), assetID, int32(height), after)
	if err != nil {
		s.log.Errorw("distribution", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	switch page.Status {
	case query.StatusNoData:
		w.WriteHeader(http.StatusNoContent)
	case query.StatusInProgress:
		w.WriteHeader(http.StatusAccepted)
	case query.StatusExist:
		items := make([]distributionItemDTO, len(page.Items))
		for i, it := range page.Items {
			items[i] = distributionItemDTO{Rank: it.Rank, Address: it.Address, Amount: it.Amount.String(), Height: it.Height}
		}
		writeJSON(w, http.StatusOK, distributionResponse{
			Items: items,
			PageInfo: pageInfoDTO{
				LastCursor: strconv.FormatInt(page.LastUID, 10),
				HasNext:    page.HasNext,
			},
		})
	}
}

func (s *Server) handlePostDistribution(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "asset_id")
	if !dictionary.ValidateBase58(assetID) {
		writeError(w, http.StatusBadRequest, "asset_id must be base58")
		return
	}
	height, err := strconv.ParseInt(chi.URLParam(r, "height"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid height")
		return
	}

	outcome, err := s.surface.CreateDistributionTask(r.Context(), assetID, int32(height))
	if err != nil {
		if errors.Is(err, distribution.ErrHeightTooRecent) {
			writeError(w, http.StatusBadRequest, "height too close to chain tip")
			return
		}
		s.log.Errorw("create distribution task", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if outcome == distribution.Created {
		w.WriteHeader(http.StatusCreated)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
