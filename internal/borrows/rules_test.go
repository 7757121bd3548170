package borrows

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"equipborrow-backend/internal/capacity"
	"equipborrow-backend/internal/deficiencies"
	"equipborrow-backend/internal/platform/apierr"
	"equipborrow-backend/internal/platform/auth"
)

func at(h int) time.Time { return time.Date(2025, 8, 11, h, 0, 0, 0, time.UTC) }

func win(from, to int) capacity.Window { return capacity.Window{Start: at(from), End: at(to)} }

func strp(s string) *string { return &s }

func TestCanApply(t *testing.T) {
	cases := []struct {
		a    Action
		from Status
		want bool
	}{
		{ActionApprove, StatusPending, true},
		{ActionApprove, StatusApproved, false},
		{ActionReject, StatusApproved, true},
		{ActionReject, StatusActive, false},
		{ActionCheckout, StatusApproved, true},
		{ActionCheckout, StatusPending, false},
		{ActionRequestReturn, StatusOverdue, true},
		{ActionRequestReturn, StatusPendingReturn, false},
		{ActionReturn, StatusPendingReturn, true},
		{ActionReturn, StatusReturned, false},
		{ActionComplete, StatusReturned, true},
		{ActionComplete, StatusActive, false},
		{ActionCancel, StatusApproved, true},
		{ActionCancel, StatusActive, false},
		{Action("teleport"), StatusPending, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanApply(tc.a, tc.from), "%s from %s", tc.a, tc.from)
	}
}

func TestParseAction(t *testing.T) {
	a, ok := ParseAction("request-return")
	assert.True(t, ok)
	assert.Equal(t, ActionRequestReturn, a)
	_, ok = ParseAction("mark-overdue")
	assert.False(t, ok)
}

func TestTargetRecordsWhoRejected(t *testing.T) {
	assert.Equal(t, StatusRejectedFIC, Target(ActionReject, auth.Actor{Role: auth.RoleFaculty}))
	assert.Equal(t, StatusRejectedStaff, Target(ActionReject, auth.Actor{Role: auth.RoleStaff}))
	assert.Equal(t, StatusRejectedStaff, Target(ActionReject, auth.Actor{Role: auth.RoleAdmin}))
	assert.Equal(t, StatusApproved, Target(ActionApprove, auth.Actor{Role: auth.RoleFaculty}))
}

func TestAuthorize(t *testing.T) {
	b := &Borrow{ID: "B1", BorrowerID: "STU1", FICID: strp("FAC1")}
	mates := map[string]bool{"STU2": true}

	staff := auth.Actor{UserID: "S1", Role: auth.RoleStaff}
	fic := auth.Actor{UserID: "FAC1", Role: auth.RoleFaculty}
	otherFac := auth.Actor{UserID: "FAC2", Role: auth.RoleFaculty}
	owner := auth.Actor{UserID: "STU1", Role: auth.RoleStudent}
	mate := auth.Actor{UserID: "STU2", Role: auth.RoleStudent}
	stranger := auth.Actor{UserID: "STU3", Role: auth.RoleStudent}

	cases := []struct {
		name  string
		a     Action
		actor auth.Actor
		ok    bool
	}{
		{"staff approves", ActionApprove, staff, true},
		{"fic approves", ActionApprove, fic, true},
		{"other faculty approves", ActionApprove, otherFac, false},
		{"student approves", ActionApprove, owner, false},
		{"fic rejects", ActionReject, fic, true},
		{"fic checks out", ActionCheckout, fic, false},
		{"staff checks out", ActionCheckout, staff, true},
		{"owner requests return", ActionRequestReturn, owner, true},
		{"mate requests return", ActionRequestReturn, mate, true},
		{"stranger requests return", ActionRequestReturn, stranger, false},
		{"owner returns", ActionReturn, owner, false},
		{"staff completes", ActionComplete, staff, true},
		{"owner cancels", ActionCancel, owner, true},
		{"mate cancels", ActionCancel, mate, false},
		{"staff cancels", ActionCancel, staff, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Authorize(tc.a, tc.actor, b, mates)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, apierr.Is(err, apierr.CodePermissionDenied), "got %v", err)
			}
		})
	}

	noFIC := &Borrow{BorrowerID: "STU1"}
	assert.Error(t, Authorize(ActionApprove, fic, noFIC, nil))
}

func TestValidateWindow(t *testing.T) {
	now := at(8)
	assert.NoError(t, ValidateWindow(win(9, 11), now))
	assert.NoError(t, ValidateWindow(capacity.Window{Start: now.Add(-4 * time.Minute), End: at(10)}, now))

	err := ValidateWindow(capacity.Window{Start: now.Add(-10 * time.Minute), End: at(10)}, now)
	assert.True(t, apierr.Is(err, apierr.CodeInvalidArgument))
	assert.Contains(t, err.Error(), "past")

	err = ValidateWindow(win(11, 9), now)
	assert.Contains(t, err.Error(), "before end")

	long := capacity.Window{Start: at(9), End: at(9).Add(MaxWindow + time.Hour)}
	assert.Contains(t, ValidateWindow(long, now).Error(), "30 days")
}

func TestCanView(t *testing.T) {
	b := &Borrow{BorrowerID: "STU1", FICID: strp("FAC1")}
	mates := map[string]bool{"STU2": true}
	assert.True(t, CanView(auth.Actor{UserID: "X", Role: auth.RoleAdmin}, b, nil))
	assert.True(t, CanView(auth.Actor{UserID: "STU1", Role: auth.RoleStudent}, b, nil))
	assert.True(t, CanView(auth.Actor{UserID: "STU2", Role: auth.RoleStudent}, b, mates))
	assert.True(t, CanView(auth.Actor{UserID: "FAC1", Role: auth.RoleFaculty}, b, nil))
	assert.False(t, CanView(auth.Actor{UserID: "FAC2", Role: auth.RoleFaculty}, b, nil))
	assert.False(t, CanView(auth.Actor{UserID: "STU3", Role: auth.RoleStudent}, b, mates))
}

func TestAutoRejectCandidates(t *testing.T) {
	blocking := []capacity.Window{win(10, 12)}
	pending := []Candidate{
		{BorrowID: "overlaps", Window: win(11, 13)},
		{BorrowID: "touches-end", Window: win(12, 14)},
		{BorrowID: "touches-start", Window: win(9, 10)},
		{BorrowID: "contains", Window: win(8, 15)},
	}
	assert.Equal(t, []string{"overlaps", "contains"}, AutoRejectCandidates(pending, blocking, 1))
	assert.Empty(t, AutoRejectCandidates(pending, blocking, 2))

	two := append(blocking, win(11, 12))
	assert.Equal(t, []string{"overlaps", "contains"}, AutoRejectCandidates(pending, two, 2))
}

func TestIsLate(t *testing.T) {
	b := &Borrow{RequestedEnd: at(10)}
	assert.False(t, IsLate(b, at(10)))
	assert.True(t, IsLate(b, at(11)))

	end := at(12)
	b.ApprovedEnd = &end
	assert.False(t, IsLate(b, at(11)))
}

func TestDeficiencyTypes(t *testing.T) {
	assert.Empty(t, DeficiencyTypes(ConditionGood, false))
	assert.Equal(t, []deficiencies.Type{deficiencies.TypeLateReturn}, DeficiencyTypes(ConditionGood, true))
	assert.Equal(t, []deficiencies.Type{deficiencies.TypeDamage}, DeficiencyTypes(ConditionDamaged, false))
	assert.Equal(t, []deficiencies.Type{deficiencies.TypeDamage, deficiencies.TypeLateReturn}, DeficiencyTypes(ConditionDamaged, true))
	assert.Equal(t, []deficiencies.Type{deficiencies.TypeLoss}, DeficiencyTypes(ConditionLost, true))
}

func TestMergeItems(t *testing.T) {
	got := mergeItems([]BulkItem{
		{EquipmentID: "E2", Quantity: 2},
		{EquipmentID: " E1 "},
		{EquipmentID: "E2", Quantity: 1},
		{EquipmentID: ""},
	})
	assert.Equal(t, []BulkItem{{EquipmentID: "E2", Quantity: 3}, {EquipmentID: "E1", Quantity: 1}}, got)
}

func TestSpan(t *testing.T) {
	assert.Equal(t, win(8, 14), span([]capacity.Window{win(10, 12), win(8, 9), win(13, 14)}))
}
