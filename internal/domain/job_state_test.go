package domain_test

import (
	"testing"

	"github.com/repairx/job-service/internal/domain"
)

func TestParseJobState_ValidValues(t *testing.T) {
	valid := []string{
		"CREATED", "IN_DIAGNOSIS", "AWAITING_APPROVAL", "APPROVED", "IN_PROGRESS", "PARTS_ORDERED",
		"TESTING", "QUALITY_CHECK", "COMPLETED", "CUSTOMER_APPROVED", "DELIVERED", "CANCELLED",
	}
	for _, s := range valid {
		got, err := domain.ParseJobState(s)
		if err != nil {
			t.Errorf("ParseJobState(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseJobState(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParseJobState_Rejects(t *testing.T) {
	for _, s := range []string{"", "INVALID_STATE", "created", " CREATED", "CREATED ", "DONE"} {
		if _, err := domain.ParseJobState(s); err == nil {
			t.Errorf("ParseJobState(%q) expected error, got nil", s)
		}
	}
}

func TestSubjectTypeActorType(t *testing.T) {
	if domain.SubjectTypeCustomer.ActorType() != domain.ActorTypeCustomer {
		t.Error("customer subject should map to CUSTOMER actor")
	}
	if domain.SubjectTypeStaff.ActorType() != domain.ActorTypeStaff {
		t.Error("staff subject should map to STAFF actor")
	}
	if domain.SubjectType("ROBOT").ActorType() != domain.ActorTypeSystem {
		t.Error("unknown subject should map to SYSTEM actor")
	}
}

func TestStaffRoleCanManageJobs(t *testing.T) {
	if domain.StaffRoleTechnician.CanManageJobs() {
		t.Error("technician should not manage all jobs")
	}
	if !domain.StaffRoleManager.CanManageJobs() || !domain.StaffRoleAdmin.CanManageJobs() {
		t.Error("manager and admin should manage all jobs")
	}
}
