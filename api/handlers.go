package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/xraph/escrow"
	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/types"
	"github.com/xraph/escrow/voucher"
)

type amountRequest struct {
	Amount types.Amount `json:"amount"`
}

type feeRequest struct {
	Bps int `json:"bps"`
}

type relayerRequest struct {
	Relayer access.Address `json:"relayer"`
}

type addVouchersRequest struct {
	Amounts []types.Amount `json:"amounts"`
}

type approveRequest struct {
	Codes     []voucher.Code   `json:"codes"`
	Claimants []access.Address `json:"claimants"`
}

type sendRequest struct {
	Recipients []access.Address `json:"recipients"`
	Codes      []voucher.Code   `json:"codes"`
}

type reclaimRequest struct {
	Codes []voucher.Code `json:"codes"`
}

// AmountResponse reports the amount moved by a withdrawal or reclaim.
type AmountResponse struct {
	Amount types.Amount `json:"amount"`
}

// RoleResponse answers a role membership query.
type RoleResponse struct {
	Address access.Address `json:"address"`
	Role    access.Role    `json:"role"`
	Held    bool           `json:"held"`
}

// VouchersResponse wraps minted or listed vouchers.
type VouchersResponse[T any] struct {
	Vouchers []T `json:"vouchers"`
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", escrow.ErrInvalidArgument, err)
	}
	return nil
}

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request, caller access.Address) {
	var req amountRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	res, err := h.engine.Deposit(r.Context(), caller, req.Amount)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request, caller access.Address) {
	amount, err := h.engine.WithdrawBalance(r.Context(), caller)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AmountResponse{Amount: amount})
}

func (h *Handler) setFee(w http.ResponseWriter, r *http.Request, caller access.Address) {
	var req feeRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	if err := h.engine.SetFee(r.Context(), caller, req.Bps); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setRelayer(w http.ResponseWriter, r *http.Request, caller access.Address) {
	var req relayerRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	if err := h.engine.SetRelayer(r.Context(), caller, req.Relayer); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addVouchers(w http.ResponseWriter, r *http.Request, caller access.Address) {
	var req addVouchersRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	minted, err := h.engine.AddVouchers(r.Context(), caller, req.Amounts)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, VouchersResponse[voucher.Minted]{Vouchers: minted})
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request, caller access.Address) {
	var req approveRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	if err := h.engine.ApproveClaimants(r.Context(), caller, req.Codes, req.Claimants); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request, caller access.Address) {
	var req sendRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	res, err := h.engine.SendVouchers(r.Context(), caller, req.Recipients, req.Codes)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) claim(w http.ResponseWriter, r *http.Request, caller access.Address) {
	code := voucher.Code(mux.Vars(r)["code"])
	v, err := h.engine.ClaimVoucher(r.Context(), caller, code)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) reclaim(w http.ResponseWriter, r *http.Request, caller access.Address) {
	var req reclaimRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	released, err := h.engine.ReclaimVouchers(r.Context(), caller, req.Codes)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AmountResponse{Amount: released})
}

func (h *Handler) getVoucher(w http.ResponseWriter, r *http.Request) {
	v, err := h.engine.Voucher(voucher.Code(mux.Vars(r)["code"]))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.engine.Account(access.Address(mux.Vars(r)["address"]))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (h *Handler) hasRole(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	role, err := access.ParseRole(vars["role"])
	if err != nil {
		h.fail(w, fmt.Errorf("%w: %w", escrow.ErrInvalidArgument, err))
		return
	}
	addr := access.Address(vars["address"])
	held, err := h.engine.HasRole(addr, role)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RoleResponse{Address: addr, Role: role, Held: held})
}

// listVouchers accepts optional status, limit and offset query parameters.
func (h *Handler) listVouchers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := voucher.ListOpts{Status: voucher.Status(q.Get("status"))}

	var err error
	if opts.Limit, err = intParam(q.Get("limit")); err != nil {
		h.fail(w, err)
		return
	}
	if opts.Offset, err = intParam(q.Get("offset")); err != nil {
		h.fail(w, err)
		return
	}

	vs, err := h.engine.VouchersByPledger(access.Address(mux.Vars(r)["address"]), opts)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, VouchersResponse[*voucher.Voucher]{Vouchers: vs})
}

func (h *Handler) stats(w http.ResponseWriter, _ *http.Request) {
	st, err := h.engine.Stats()
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	if _, err := h.engine.Stats(); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q is not a non-negative integer", escrow.ErrInvalidArgument, s)
	}
	return n, nil
}
