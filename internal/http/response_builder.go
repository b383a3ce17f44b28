// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for JSON responses and the wire
// shapes of the API.

package http

import (
	"encoding/json"
	"net/http"

	"financas/internal/core"
	"financas/internal/report"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a standard {"error": message} response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// Wire shapes. Money travels as integer cents plus a display string.

type moneyJSON struct {
	Cents     int64  `json:"cents"`
	Formatted string `json:"formatted"`
}

func toMoneyJSON(m core.Money) moneyJSON {
	return moneyJSON{Cents: m.Cents, Formatted: report.FormatBRL(m)}
}

type periodJSON struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

type totalsJSON struct {
	Income   moneyJSON `json:"income"`
	Expense  moneyJSON `json:"expense"`
	Invested moneyJSON `json:"invested"`
	Balance  moneyJSON `json:"balance"`
}

func toTotalsJSON(t core.Totals) totalsJSON {
	return totalsJSON{
		Income:   toMoneyJSON(t.Income),
		Expense:  toMoneyJSON(t.Expense),
		Invested: toMoneyJSON(t.Invested),
		Balance:  toMoneyJSON(t.Balance),
	}
}

type transactionJSON struct {
	ID          string    `json:"id,omitempty"`
	Description string    `json:"description"`
	Amount      moneyJSON `json:"amount"`
	Category    string    `json:"category"`
	Subcategory string    `json:"subcategory,omitempty"`
	Month       int       `json:"month"`
	Year        int       `json:"year"`
	Installment string    `json:"installment,omitempty"`
}

func toTransactionJSON(tx core.Transaction) transactionJSON {
	return transactionJSON{
		ID:          tx.ID,
		Description: tx.Description,
		Amount:      toMoneyJSON(tx.Amount),
		Category:    tx.Category,
		Subcategory: tx.Subcategory,
		Month:       tx.Month,
		Year:        tx.Year,
		Installment: tx.Installment,
	}
}

type installmentJSON struct {
	Transaction transactionJSON `json:"transaction"`
	Current     int             `json:"current"`
	Total       int             `json:"total"`
	Remaining   int             `json:"remaining"`
	Tier        string          `json:"tier"`
}

type installmentsJSON struct {
	Period         periodJSON        `json:"period"`
	Ordered        []installmentJSON `json:"ordered"`
	Penultimate    []installmentJSON `json:"penultimate"`
	PenultimateSum moneyJSON         `json:"penultimate_sum"`
	Final          []installmentJSON `json:"final"`
	FinalSum       moneyJSON         `json:"final_sum"`
	GrandSum       moneyJSON         `json:"grand_sum"`
}

func toInstallmentEntries(entries []core.InstallmentEntry) []installmentJSON {
	out := make([]installmentJSON, len(entries))
	for i, e := range entries {
		out[i] = installmentJSON{
			Transaction: toTransactionJSON(e.Transaction),
			Current:     e.Installment.Current,
			Total:       e.Installment.Total,
			Remaining:   e.Installment.Remaining(),
			Tier:        e.Tier.String(),
		}
	}
	return out
}

func toInstallmentsJSON(r core.InstallmentReport) installmentsJSON {
	return installmentsJSON{
		Period:         periodJSON{Year: r.Period.Year, Month: r.Period.Month},
		Ordered:        toInstallmentEntries(r.Ordered),
		Penultimate:    toInstallmentEntries(r.Penultimate),
		PenultimateSum: toMoneyJSON(r.PenultimateSum),
		Final:          toInstallmentEntries(r.Final),
		FinalSum:       toMoneyJSON(r.FinalSum),
		GrandSum:       toMoneyJSON(r.GrandSum),
	}
}

type categoryJSON struct {
	Name   string    `json:"name"`
	Amount moneyJSON `json:"amount"`
}

type monthJSON struct {
	Year       int            `json:"year"`
	Month      int            `json:"month"`
	Totals     totalsJSON     `json:"totals"`
	ByCategory []categoryJSON `json:"by_category"`
}

type overviewJSON struct {
	AsOfYear     int              `json:"as_of_year"`
	Totals       totalsJSON       `json:"totals"`
	LastPeriod   periodJSON       `json:"last_period"`
	Installments installmentsJSON `json:"installments"`
	Months       []monthJSON      `json:"months"`
}

func toOverviewJSON(ov core.Overview) overviewJSON {
	months := make([]monthJSON, len(ov.Months))
	for i, m := range ov.Months {
		cats := make([]categoryJSON, len(m.ByCategory))
		for j, c := range m.ByCategory {
			cats[j] = categoryJSON{Name: c.Name, Amount: toMoneyJSON(c.Amount)}
		}
		months[i] = monthJSON{Year: m.Year, Month: m.Month, Totals: toTotalsJSON(m.Totals), ByCategory: cats}
	}
	return overviewJSON{
		AsOfYear:     ov.AsOfYear,
		Totals:       toTotalsJSON(ov.Totals),
		LastPeriod:   periodJSON{Year: ov.LastPeriod.Year, Month: ov.LastPeriod.Month},
		Installments: toInstallmentsJSON(ov.Installments),
		Months:       months,
	}
}
