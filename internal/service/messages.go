package service

import "github.com/mmynk/tripshare/internal/models"

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is returned by Register and Login.
type AuthResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

type CreateTripRequest struct {
	Name         string          `json:"name"`
	BaseCurrency string          `json:"baseCurrency"`
	People       []models.Person `json:"people"`
}

type GetTripRequest struct {
	TripID string `json:"tripId"`
}

type TripResponse struct {
	Trip *models.Trip `json:"trip"`
}

type ListTripsRequest struct{}

type ListTripsResponse struct {
	Trips []models.TripSummary `json:"trips"`
}

type UpdatePeopleRequest struct {
	TripID string          `json:"tripId"`
	People []models.Person `json:"people"`
}

type SaveExpenseRequest struct {
	TripID  string         `json:"tripId"`
	Expense models.Expense `json:"expense"`
}

type ExpenseResponse struct {
	Expense models.Expense `json:"expense"`
}

type DeleteExpenseRequest struct {
	TripID    string `json:"tripId"`
	ExpenseID string `json:"expenseId"`
}

type Empty struct{}

type GetBalancesRequest struct {
	TripID string `json:"tripId"`
}

// GroupBalance is one balance group's position in the trip's base currency.
type GroupBalance struct {
	Key        string   `json:"key"`
	Name       string   `json:"name"`
	Members    []string `json:"members"`
	IsMerged   bool     `json:"isMerged"`
	TotalPaid  float64  `json:"totalPaid"`
	Share      float64  `json:"share"`
	NetBalance float64  `json:"netBalance"`
	Settled    bool     `json:"settled"`
}

// SettlementView is a settlement with display names for both sides.
type SettlementView struct {
	models.Settlement
	FromName string `json:"fromName"`
	ToName   string `json:"toName"`
}

type GetBalancesResponse struct {
	BaseCurrency string           `json:"baseCurrency"`
	Balances     []GroupBalance   `json:"balances"`
	Settlements  []SettlementView `json:"settlements"`
}
