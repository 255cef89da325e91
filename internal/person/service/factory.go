package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"eap/internal/person/models"
	id "eap/pkg/domain"
	dErrors "eap/pkg/domain-errors"
	"eap/pkg/platform/audit"
	"eap/pkg/platform/sentinel"
	"eap/pkg/requestcontext"
)

// creation is what the four constructors have in common once their request
// is normalized and checked.
type creation struct {
	details *models.PersonDetails
	role    models.Role
	// References the role carries besides the identity links.
	organization    id.OrganizationID
	primaryEmployee id.PersonID
	guardian        id.AccountID
}

// references holds the collaborator records a creation points at.
type references struct {
	profile         *models.Profile
	account         *models.Account
	primaryEmployee *models.Person
}

func (s *Service) CreatePlatformStaff(ctx context.Context, req *models.CreatePlatformStaffRequest) (*models.Person, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, s.fail(ctx, "create_platform_staff", err)
	}
	return s.create(ctx, "create_platform_staff", creation{
		details:      &req.PersonDetails,
		role:         req.Role(),
		organization: req.OrganizationID,
	})
}

func (s *Service) CreateClientEmployee(ctx context.Context, req *models.CreateClientEmployeeRequest) (*models.Person, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, s.fail(ctx, "create_client_employee", err)
	}
	return s.create(ctx, "create_client_employee", creation{
		details:      &req.PersonDetails,
		role:         req.Role(),
		organization: req.EmployerID,
	})
}

func (s *Service) CreateServiceProvider(ctx context.Context, req *models.CreateServiceProviderRequest) (*models.Person, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, s.fail(ctx, "create_service_provider", err)
	}
	return s.create(ctx, "create_service_provider", creation{
		details: &req.PersonDetails,
		role:    req.Role(),
	})
}

// CreateDependent links a new dependent to an existing client employee. The
// referenced record must hold the ClientEmployee role; a minor child needs a
// guardian account.
func (s *Service) CreateDependent(ctx context.Context, req *models.CreateDependentRequest) (*models.Person, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, s.fail(ctx, "create_dependent", err)
	}
	return s.create(ctx, "create_dependent", creation{
		details:         &req.PersonDetails,
		role:            req.Role(),
		primaryEmployee: req.PrimaryEmployeeID,
		guardian:        req.GuardianAccountID,
	})
}

func (s *Service) create(ctx context.Context, operation string, c creation) (*models.Person, error) {
	ctx, span := s.tracer.Start(ctx, "person."+operation,
		trace.WithAttributes(attribute.String("person.type", string(c.role.Type()))))
	defer span.End()
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveCreatePerson(start)
		}
	}()

	refs, err := s.loadReferences(ctx, c)
	if err != nil {
		return nil, s.fail(ctx, operation, err)
	}
	if refs.primaryEmployee != nil && !refs.primaryEmployee.HasRole(models.PersonTypeClientEmployee) {
		return nil, s.fail(ctx, operation, dErrors.New(dErrors.CodePreconditionViolation,
			"primary employee must hold the client_employee role").
			WithFields(dErrors.FieldError{Field: "primary_employee_id", Message: "is not a client employee"}))
	}

	var created *models.Person
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.persist(txCtx, c, refs)
		if err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, operation, err)
	}

	span.SetAttributes(attribute.String("person.id", created.ID.String()))
	if s.metrics != nil {
		s.metrics.IncrementPersonCreated(string(created.Type()))
	}
	s.logAudit(ctx, audit.EventPersonCreated,
		"person_id", created.ID.String(),
		"person_type", string(created.Type()),
	)
	return created, nil
}

// loadReferences resolves every referenced record concurrently. Any miss is
// a ReferenceNotFound naming the field.
func (s *Service) loadReferences(ctx context.Context, c creation) (*references, error) {
	refs := &references{}
	g, gctx := errgroup.WithContext(ctx)

	if !c.details.ProfileID.IsNil() {
		g.Go(func() error {
			p, err := s.profiles.FindByID(gctx, c.details.ProfileID)
			if err != nil {
				return storeError(err, referenceNotFound("profile_id", "profile"), "failed to load profile")
			}
			refs.profile = p
			return nil
		})
	}
	if !c.details.AccountID.IsNil() {
		g.Go(func() error {
			a, err := s.accounts.FindByID(gctx, c.details.AccountID)
			if err != nil {
				return storeError(err, referenceNotFound("account_id", "account"), "failed to load account")
			}
			refs.account = a
			return nil
		})
	}
	if !c.organization.IsNil() {
		field := "organization_id"
		if c.role.Type() == models.PersonTypeClientEmployee {
			field = "employer_id"
		}
		g.Go(func() error {
			_, err := s.orgs.FindByID(gctx, c.organization)
			return storeError(err, referenceNotFound(field, "organization"), "failed to load organization")
		})
	}
	if !c.primaryEmployee.IsNil() {
		g.Go(func() error {
			e, err := s.persons.FindByID(gctx, c.primaryEmployee)
			if err != nil {
				return storeError(err, referenceNotFound("primary_employee_id", "primary employee"), "failed to load primary employee")
			}
			if e.IsDeleted() {
				return referenceNotFound("primary_employee_id", "primary employee")
			}
			refs.primaryEmployee = e
			return nil
		})
	}
	if !c.guardian.IsNil() {
		g.Go(func() error {
			_, err := s.accounts.FindByID(gctx, c.guardian)
			return storeError(err, referenceNotFound("guardian_account_id", "guardian account"), "failed to load guardian account")
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return refs, nil
}

// persist creates the profile and account when raw data was supplied,
// assembles and validates the record, writes it, and appends the audit
// event. It must run inside a transaction.
func (s *Service) persist(ctx context.Context, c creation, refs *references) (*models.Person, error) {
	now := requestcontext.Now(ctx)
	d := c.details

	var dob *time.Time
	profileID := d.ProfileID
	if refs.profile != nil {
		dob = refs.profile.DateOfBirth
		// Fast path only; persons_profile_id_key settles concurrent creations.
		if _, err := s.persons.FindByProfileID(ctx, profileID); err == nil {
			return nil, profileTaken()
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check profile link")
		}
	} else {
		np := d.NewProfile
		profile := &models.Profile{
			ID:          id.NewProfileID(),
			FirstName:   np.FirstName,
			LastName:    np.LastName,
			DateOfBirth: np.DateOfBirth,
			Email:       np.Email,
			Phone:       np.Phone,
			CreatedAt:   now,
		}
		if err := s.profiles.Create(ctx, profile); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create profile")
		}
		profileID = profile.ID
		dob = profile.DateOfBirth
	}

	accountID := d.AccountID
	if refs.account == nil {
		account := &models.Account{
			ID:        id.NewAccountID(),
			Email:     d.AccountEmail,
			Active:    false,
			CreatedAt: now,
		}
		if err := s.accounts.Create(ctx, account); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return nil, dErrors.New(dErrors.CodeConflict, "account email already in use").
					WithFields(dErrors.FieldError{Field: "account_email", Message: "already in use"})
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create account")
		}
		accountID = account.ID
	}

	p := &models.Person{
		ID:               id.NewPersonID(),
		ProfileID:        profileID,
		AccountID:        accountID,
		Primary:          c.role,
		Status:           models.StatusActive,
		EmergencyContact: d.EmergencyContact,
		Notes:            d.Notes,
		Metadata:         d.Metadata,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	in := models.ValidationInput{Now: now, DateOfBirth: dob, PrimaryEmployee: refs.primaryEmployee}
	if err := models.Validate(p, in); err != nil {
		return nil, err
	}

	if err := s.persons.Create(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, profileTaken()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create person")
	}
	if err := s.appendAudit(ctx, audit.EventPersonCreated, p, ""); err != nil {
		return nil, err
	}
	return p, nil
}

func profileTaken() error {
	return dErrors.New(dErrors.CodeConflict, "profile already backs a person").
		WithFields(dErrors.FieldError{Field: "profile_id", Message: "already linked"})
}
