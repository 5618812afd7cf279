package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"flowershop/backend/internal/domain"
	"flowershop/backend/internal/pricing"
	"flowershop/backend/internal/service"
)

func (a *API) handleCalendar(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	year, month := now.Year(), int(now.Month())
	if raw := strings.TrimSpace(r.URL.Query().Get("year")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("year must be a number"))
			return
		}
		year = parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("month")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("month must be a number"))
			return
		}
		month = parsed
	}

	resp, err := a.service.Calendar(r.Context(), year, month)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCreateCalendarEntry(w http.ResponseWriter, r *http.Request) {
	var req domain.CalendarEntryRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	entry, err := a.service.CreateCalendarEntry(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"entry": entry})
}

func (a *API) handleUpdateCalendarEntry(w http.ResponseWriter, r *http.Request) {
	var req domain.CalendarEntryUpdateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	entry, err := a.service.UpdateCalendarEntry(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entry": entry})
}

func (a *API) handleDeleteCalendarEntry(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteCalendarEntry(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListDiscountTiers(w http.ResponseWriter, r *http.Request) {
	tiers, err := a.service.ListDiscountTiers(r.Context(), r.URL.Query().Get("branch_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tiers": tiers})
}

func (a *API) handleCreateDiscountTier(w http.ResponseWriter, r *http.Request) {
	var req domain.DiscountTierCreateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tier, err := a.service.CreateDiscountTier(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"tier": tier})
}

func (a *API) handleUpdateDiscountTier(w http.ResponseWriter, r *http.Request) {
	var req domain.DiscountTierUpdateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tier, err := a.service.SetDiscountTierActive(r.Context(), chi.URLParam(r, "id"), req.Active)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tier": tier})
}

func (a *API) handleListBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := a.service.ListBranches(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"branches": branches})
}

func (a *API) handleGetDeliveryFees(w http.ResponseWriter, r *http.Request) {
	table, err := a.service.GetDeliveryFees(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"delivery_fees": table})
}

func (a *API) handleUpdateDeliveryFees(w http.ResponseWriter, r *http.Request) {
	var table domain.DeliveryFeeTable
	if err := decodeAndValidate(r, &table); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	branch, err := a.service.UpdateDeliveryFees(r.Context(), chi.URLParam(r, "id"), &table)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"branch": branch})
}

// handleSurcharges returns one surcharge when ?kind= is given, otherwise all three.
func (a *API) handleSurcharges(w http.ResponseWriter, r *http.Request) {
	branchID := chi.URLParam(r, "id")
	kind := strings.TrimSpace(r.URL.Query().Get("kind"))
	if kind == "" {
		table, err := a.service.GetDeliveryFees(r.Context(), branchID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"surcharges": table.Surcharges})
		return
	}
	amount, err := a.service.Surcharge(r.Context(), branchID, pricing.SurchargeKind(kind))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "amount": amount})
}

func (a *API) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := a.service.ListCustomers(r.Context(), r.URL.Query().Get("branch_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
}

func (a *API) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.CustomerCreateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	customer, err := a.service.CreateCustomer(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"customer": customer})
}

func (a *API) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := a.service.GetCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
}

func (a *API) handleRevenueReport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	report, err := a.service.RevenueReport(r.Context(), query.Get("branch_id"), query.Get("date"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if strings.EqualFold(strings.TrimSpace(query.Get("format")), "csv") {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"revenue-%s.csv\"", report.Date))
		_, _ = w.Write([]byte(revenueReportToCSV(report)))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func revenueReportToCSV(report domain.RevenueReport) string {
	branch := report.BranchID
	if branch == "" {
		branch = "all"
	}
	lines := []string{
		"section,key,value",
		fmt.Sprintf("summary,date,%s", report.Date),
		fmt.Sprintf("summary,branch_id,%s", branch),
		fmt.Sprintf("summary,orders,%d", report.Orders),
		fmt.Sprintf("summary,recognized,%d", report.Recognized),
		fmt.Sprintf("summary,deferred,%d", report.Deferred),
		fmt.Sprintf("summary,delivery_fees,%d", report.DeliveryFees),
		fmt.Sprintf("summary,points_redeemed,%d", report.PointsRedeemed),
	}
	for _, m := range report.ByMethod {
		lines = append(lines, fmt.Sprintf("method,%s_tranches,%d", m.Method, m.Tranches))
		lines = append(lines, fmt.Sprintf("method,%s_amount,%d", m.Method, m.Amount))
	}
	return strings.Join(lines, "\n") + "\n"
}

func (a *API) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	expenses, err := a.service.ListExpenses(r.Context(), query.Get("branch_id"), query.Get("date"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": expenses})
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := parsePositiveLimit(query.Get("limit"), 100, 500)
	logs, err := a.service.ListAuditLogs(r.Context(), query.Get("branch_id"), query.Get("date"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (a *API) handleListStaff(w http.ResponseWriter, r *http.Request) {
	staff := a.auth.ListStaff(r.Context(), r.URL.Query().Get("branch_id"))
	writeJSON(w, http.StatusOK, map[string]any{"staff": staff})
}

func (a *API) handleCreateStaff(w http.ResponseWriter, r *http.Request) {
	var req domain.StaffCreateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user, err := a.auth.CreateStaff(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	actor, _ := service.ActorFromContext(r.Context())
	log.Info().Str("actor", actor.Username).Str("username", user.Username).Str("branch_id", user.BranchID).Msg("staff account created")
	writeJSON(w, http.StatusCreated, map[string]any{"staff": user})
}
