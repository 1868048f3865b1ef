package authz_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fieldline/fieldline"
	"github.com/fieldline/fieldline/authz"
	"github.com/fieldline/fieldline/id"
	"github.com/fieldline/fieldline/job"
)

var tenant = id.NewTenantID()

func employee(caps authz.Capabilities) authz.Actor {
	return authz.Actor{
		UserID:       id.NewUserID(),
		TenantID:     tenant,
		Role:         authz.RoleEmployee,
		Capabilities: caps,
	}
}

func admin() authz.Actor {
	return authz.Actor{
		UserID:       id.NewUserID(),
		TenantID:     tenant,
		Role:         authz.RoleAdmin,
		Capabilities: authz.FullCapabilities(),
	}
}

func ownedBy(userID id.UserID) *job.Job {
	return &job.Job{
		ID:          id.NewJobID(),
		TenantID:    tenant,
		Title:       "Existing job",
		ContactID:   id.NewContactID(),
		Status:      job.StatusScheduled,
		CreatedByID: userID,
	}
}

// denyReason asserts the error is an AuthzError carrying exactly reason.
func denyReason(t *testing.T, err error, reason string) {
	t.Helper()
	var aerr *fieldline.AuthzError
	if !errors.As(err, &aerr) {
		t.Fatalf("expected AuthzError, got %v", err)
	}
	if aerr.Reason != reason {
		t.Errorf("reason = %q, want %q", aerr.Reason, reason)
	}
}

func TestAuthorizeCreateCapabilities(t *testing.T) {
	guard := authz.New(authz.StaticTier(authz.TierTeam))
	ctx := context.Background()

	tests := []struct {
		name       string
		caps       authz.Capabilities
		scheduled  bool
		wantReason string
	}{
		{"no capabilities", authz.Capabilities{}, false, authz.ReasonCannotCreate},
		{"create only, unscheduled", authz.Capabilities{CanCreateJobs: true}, false, ""},
		{"create only, scheduled", authz.Capabilities{CanCreateJobs: true}, true, authz.ReasonCannotSchedule},
		{"schedule only, scheduled", authz.Capabilities{CanScheduleAppointments: true}, true, ""},
		{"schedule only, unscheduled", authz.Capabilities{CanScheduleAppointments: true}, false, ""},
		{"both", authz.Capabilities{CanCreateJobs: true, CanScheduleAppointments: true}, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.Authorize(ctx, employee(tt.caps), authz.Request{
				Action:    authz.ActionCreate,
				TenantID:  tenant,
				Scheduled: tt.scheduled,
			})
			if tt.wantReason == "" {
				if err != nil {
					t.Fatalf("expected allow, got %v", err)
				}

				return
			}
			denyReason(t, err, tt.wantReason)
		})
	}
}

func TestAuthorizeAssignmentNeedsElevatedRole(t *testing.T) {
	guard := authz.New(authz.StaticTier(authz.TierTeam))

	err := guard.Authorize(context.Background(), employee(authz.FullCapabilities()), authz.Request{
		Action:    authz.ActionCreate,
		TenantID:  tenant,
		Scheduled: true,
		Assigning: true,
	})
	denyReason(t, err, "Only admins and owners can assign jobs to team members.")
}

func TestAuthorizeAssignmentNeedsTeamTier(t *testing.T) {
	guard := authz.New(authz.StaticTier(authz.TierSingle))

	err := guard.Authorize(context.Background(), admin(), authz.Request{
		Action:    authz.ActionCreate,
		TenantID:  tenant,
		Scheduled: true,
		Assigning: true,
	})
	denyReason(t, err, authz.ReasonAssignTier)
}

func TestAuthorizeAssignmentAllowed(t *testing.T) {
	guard := authz.New(authz.StaticTier(authz.TierTeam))

	err := guard.Authorize(context.Background(), admin(), authz.Request{
		Action:    authz.ActionCreate,
		TenantID:  tenant,
		Scheduled: true,
		Assigning: true,
	})
	if err != nil {
		t.Fatalf("expected allow, got %v", err)
	}
}

func TestAuthorizeNilSubscriptionSourceDeniesAssignment(t *testing.T) {
	guard := authz.New(nil)

	err := guard.Authorize(context.Background(), admin(), authz.Request{
		Action:    authz.ActionCreate,
		TenantID:  tenant,
		Assigning: true,
	})
	denyReason(t, err, authz.ReasonAssignTier)
}

type failingTier struct{}

func (failingTier) Tier(context.Context, id.TenantID) (authz.Tier, error) {
	return "", errors.New("billing unavailable")
}

func TestAuthorizeSubscriptionLookupError(t *testing.T) {
	guard := authz.New(failingTier{})

	err := guard.Authorize(context.Background(), admin(), authz.Request{
		Action:    authz.ActionCreate,
		TenantID:  tenant,
		Assigning: true,
	})
	if err == nil {
		t.Fatal("expected lookup error")
	}
	var aerr *fieldline.AuthzError
	if errors.As(err, &aerr) {
		t.Error("a lookup failure is not a denial")
	}
}

func TestAuthorizeUpdateOwnership(t *testing.T) {
	guard := authz.New(authz.StaticTier(authz.TierTeam))
	ctx := context.Background()

	creator := employee(authz.Capabilities{CanCreateJobs: true})
	mine := ownedBy(creator.UserID)
	someoneElses := ownedBy(id.NewUserID())

	for _, action := range []authz.Action{authz.ActionUpdate, authz.ActionDelete} {
		// Own job: allowed even without CanSeeOtherJobs.
		if err := guard.Authorize(ctx, creator, authz.Request{
			Action: action, TenantID: tenant, Existing: mine,
		}); err != nil {
			t.Errorf("%s own job: expected allow, got %v", action, err)
		}

		// Someone else's job without the capability: denied.
		err := guard.Authorize(ctx, creator, authz.Request{
			Action: action, TenantID: tenant, Existing: someoneElses,
		})
		denyReason(t, err, authz.ReasonNotYourJob)

		// The capability opens other people's jobs.
		withCap := employee(authz.Capabilities{CanSeeOtherJobs: true})
		if err := guard.Authorize(ctx, withCap, authz.Request{
			Action: action, TenantID: tenant, Existing: someoneElses,
		}); err != nil {
			t.Errorf("%s with capability: expected allow, got %v", action, err)
		}

		// Admins touch everything.
		if err := guard.Authorize(ctx, admin(), authz.Request{
			Action: action, TenantID: tenant, Existing: someoneElses,
		}); err != nil {
			t.Errorf("%s as admin: expected allow, got %v", action, err)
		}
	}
}

func TestAuthorizeCrossTenantAlwaysDenied(t *testing.T) {
	guard := authz.New(authz.StaticTier(authz.TierTeam))

	foreign := admin()
	foreign.TenantID = id.NewTenantID()

	err := guard.Authorize(context.Background(), foreign, authz.Request{
		Action:   authz.ActionUpdate,
		TenantID: tenant,
		Existing: ownedBy(id.NewUserID()),
	})
	denyReason(t, err, authz.ReasonCrossTenant)
}

func TestAuthorizeTenantRequired(t *testing.T) {
	guard := authz.New(nil)

	err := guard.Authorize(context.Background(), admin(), authz.Request{Action: authz.ActionCreate})
	if !errors.Is(err, fieldline.ErrTenantRequired) {
		t.Fatalf("expected ErrTenantRequired, got %v", err)
	}
}

func TestAuthorizeUnknownRole(t *testing.T) {
	guard := authz.New(nil)

	actor := admin()
	actor.Role = "contractor"

	err := guard.Authorize(context.Background(), actor, authz.Request{
		Action:   authz.ActionCreate,
		TenantID: tenant,
	})
	denyReason(t, err, authz.ReasonUnknownRole)
}

func TestEffectiveCapabilities(t *testing.T) {
	stripped := authz.Actor{Role: authz.RoleOwner}
	if !stripped.EffectiveCapabilities().CanSeeOtherJobs {
		t.Error("owners hold every capability regardless of stored flags")
	}

	emp := employee(authz.Capabilities{CanSeeOtherJobs: false})
	if emp.SeesOtherJobs() {
		t.Error("employee flags are honored as stored")
	}
}
