package apitest

import (
	"time"

	"github.com/mmynk/paytrack/internal/dates"
	"github.com/mmynk/paytrack/internal/models"
)

// SeedDemo fills the server with a few groups, users and payments for local
// development.
func (s *Server) SeedDemo() {
	now := s.now()
	month := dates.MonthNames[now.Month()-1]
	prev := now.AddDate(0, -1, 0)
	prevMonth := dates.MonthNames[prev.Month()-1]

	beginners := s.AddGroup("Beginners")
	advanced := s.AddGroup("advanced")
	s.AddGroup("Weekend")

	aziz := s.AddUser(models.User{Name: "Aziz", Surname: "Karimov", Phone: "901234567", GroupID: beginners})
	dilnoza := s.AddUser(models.User{Name: "Dilnoza", Surname: "Rahimova", Phone: "+998911112233", GroupID: beginners})
	s.AddUser(models.User{Name: "Bekzod", GroupID: beginners})
	jasur := s.AddUser(models.User{Name: "Jasur", Surname: "Tursunov", Phone: "935556677", GroupID: advanced})

	s.AddPayment(aziz, dates.MonthKey(prevMonth, prev.Year()), models.StatusPaid, prev)
	s.AddPayment(aziz, dates.MonthKey(month, now.Year()), models.StatusPaid, now.Add(-time.Hour))
	s.AddPayment(dilnoza, dates.MonthKey(month, now.Year()), models.StatusPaid, time.Time{})
	s.AddPayment(jasur, dates.MonthKey(prevMonth, prev.Year()), models.StatusPaid, prev)
	s.AddPayment(jasur, dates.MonthKey(prevMonth, prev.Year()), models.StatusUnpaid, time.Time{})
}
