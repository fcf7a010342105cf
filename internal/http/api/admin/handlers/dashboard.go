package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paperdesk/creditledger/internal/credits"
	"github.com/paperdesk/creditledger/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// maxDashboardDays caps the daily series window.
const maxDashboardDays = 90

// DashboardHandler serves admin dashboard analytics endpoints.
type DashboardHandler struct {
	db     *gorm.DB        // Database handle for ledger analytics.
	engine *credits.Engine // Day boundaries in the ledger timezone.
}

// NewDashboardHandler constructs a dashboard handler with database access.
func NewDashboardHandler(db *gorm.DB, engine *credits.Engine) *DashboardHandler {
	return &DashboardHandler{db: db, engine: engine}
}

// kpiResponse defines the KPI response payload.
type kpiResponse struct {
	Accounts         int64   `json:"accounts"`           // Number of credit accounts.
	OutstandingTotal int64   `json:"outstanding_total"`  // Sum of all balances.
	ConsumedToday    int64   `json:"consumed_today"`     // Credits spent today.
	ConsumedTrend    float64 `json:"consumed_trend"`     // Trend vs yesterday.
	CreditedToday    int64   `json:"credited_today"`     // Credits granted today.
	CreditedTrend    float64 `json:"credited_trend"`     // Trend vs yesterday.
	ActiveUsersToday int64   `json:"active_users_today"` // Users with a consumption today.
}

// periodTotals aggregates events in a time window.
type periodTotals struct {
	Consumed    int64
	Credited    int64
	ActiveUsers int64
}

func (h *DashboardHandler) totals(c *gin.Context, from, to time.Time) (periodTotals, error) {
	var out periodTotals
	errScan := h.db.WithContext(c.Request.Context()).Model(&models.CreditEvent{}).
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Select(`
			COALESCE(SUM(CASE WHEN amount < 0 THEN -amount ELSE 0 END), 0) AS consumed,
			COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0) AS credited,
			COUNT(DISTINCT CASE WHEN type = ? THEN user_id END) AS active_users
		`, models.CreditEventConsumption).
		Scan(&out).Error
	return out, errScan
}

// KPI returns ledger-wide figures for today compared with yesterday.
func (h *DashboardHandler) KPI(c *gin.Context) {
	today, errStart := h.engine.DayStart(h.engine.Today())
	if errStart != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resolve day failed"})
		return
	}
	tomorrow := today.AddDate(0, 0, 1)
	yesterday := today.AddDate(0, 0, -1)

	var accounts struct {
		Count int64
		Total int64
	}
	if errScan := h.db.WithContext(c.Request.Context()).Model(&models.CreditAccount{}).
		Select("COUNT(*) AS count, COALESCE(SUM(balance), 0) AS total").
		Scan(&accounts).Error; errScan != nil {
		log.WithError(errScan).Error("dashboard kpi: account totals failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	todayTotals, errToday := h.totals(c, today, tomorrow)
	if errToday != nil {
		log.WithError(errToday).Error("dashboard kpi: today totals failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	yesterdayTotals, errYesterday := h.totals(c, yesterday, today)
	if errYesterday != nil {
		log.WithError(errYesterday).Error("dashboard kpi: yesterday totals failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	c.JSON(http.StatusOK, kpiResponse{
		Accounts:         accounts.Count,
		OutstandingTotal: accounts.Total,
		ConsumedToday:    todayTotals.Consumed,
		ConsumedTrend:    calcTrend(float64(yesterdayTotals.Consumed), float64(todayTotals.Consumed)),
		CreditedToday:    todayTotals.Credited,
		CreditedTrend:    calcTrend(float64(yesterdayTotals.Credited), float64(todayTotals.Credited)),
		ActiveUsersToday: todayTotals.ActiveUsers,
	})
}

// dailyPoint represents one day of ledger activity.
type dailyPoint struct {
	Day      credits.Day `json:"day"`      // Calendar day in the ledger timezone.
	Consumed int64       `json:"consumed"` // Credits spent.
	Credited int64       `json:"credited"` // Credits granted.
}

// Daily returns per-day consumed and credited totals for the last ?days days (default 7).
func (h *DashboardHandler) Daily(c *gin.Context) {
	days := 7
	if raw := strings.TrimSpace(c.Query("days")); raw != "" {
		n, errParse := strconv.Atoi(raw)
		if errParse != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days"})
			return
		}
		days = min(n, maxDashboardDays)
	}

	today, errStart := h.engine.DayStart(h.engine.Today())
	if errStart != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resolve day failed"})
		return
	}
	from := today.AddDate(0, 0, -(days - 1))
	to := today.AddDate(0, 0, 1)

	var rows []struct {
		Amount    int64
		CreatedAt time.Time
	}
	if errFind := h.db.WithContext(c.Request.Context()).Model(&models.CreditEvent{}).
		Select("amount, created_at").
		Where("created_at >= ? AND created_at < ? AND amount <> 0", from.UTC(), to.UTC()).
		Find(&rows).Error; errFind != nil {
		log.WithError(errFind).Error("dashboard daily: query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	// Days are bucketed in the ledger timezone.
	loc := today.Location()
	points := make([]dailyPoint, days)
	index := make(map[credits.Day]int, days)
	for i := range points {
		day := credits.DayOf(from.AddDate(0, 0, i), loc)
		points[i].Day = day
		index[day] = i
	}
	for _, row := range rows {
		i, ok := index[credits.DayOf(row.CreatedAt, loc)]
		if !ok {
			continue
		}
		if row.Amount < 0 {
			points[i].Consumed -= row.Amount
		} else {
			points[i].Credited += row.Amount
		}
	}
	c.JSON(http.StatusOK, gin.H{"days": points})
}

// calcTrend computes percentage change from a previous value.
func calcTrend(prev, current float64) float64 {
	if prev == 0 {
		if current > 0 {
			return 100.0
		}
		return 0.0
	}
	return (current - prev) / prev * 100
}
