package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"medvault/internal/actors"
	"medvault/internal/events"
	"medvault/internal/platform/middleware"
	"medvault/pkg/domain"
	"medvault/pkg/testutil"
)

type stubValidator struct {
	claims map[string]*middleware.ActorClaims
}

func (v *stubValidator) ValidateToken(token string) (*middleware.ActorClaims, error) {
	if claims, ok := v.claims[token]; ok {
		return claims, nil
	}
	return nil, errors.New("unknown token")
}

type noopBus struct{}

func (noopBus) Publish(events.Event) {}

// The suite exercises the real service against the in-memory store so the
// handler tests double as a registration-to-review walkthrough.
type ActorsHandlerSuite struct {
	suite.Suite
	router    chi.Router
	validator *stubValidator
	admin     domain.Identity
	clinician domain.Identity
}

func TestActorsHandlerSuite(t *testing.T) {
	suite.Run(t, new(ActorsHandlerSuite))
}

func (s *ActorsHandlerSuite) SetupTest() {
	s.admin = testutil.VerifiedIdentity(domain.RoleAdministrator)
	s.clinician = testutil.PendingIdentity(domain.RoleClinician)

	s.validator = &stubValidator{claims: map[string]*middleware.ActorClaims{
		"admin-token": {
			ActorID:            s.admin.ActorID,
			Role:               s.admin.Role,
			VerificationStatus: s.admin.VerificationStatus,
		},
		"clinician-token": {
			ActorID:            s.clinician.ActorID,
			Role:               s.clinician.Role,
			VerificationStatus: s.clinician.VerificationStatus,
		},
	}}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := actors.NewService(actors.NewInMemoryStore(), noopBus{}, logger, nil)
	h := New(service, logger, nil, s.validator)
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *ActorsHandlerSuite) as(token string, req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func (s *ActorsHandlerSuite) register(token, name string) actorResponse {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/actors", registerRequest{Name: name})
	rr := testutil.DoRequest(s.router, s.as(token, req))
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	return *testutil.UnmarshalResponse[actorResponse](s.T(), rr)
}

func (s *ActorsHandlerSuite) TestRegister() {
	resp := s.register("clinician-token", "Dr. Osei")

	s.Equal(s.clinician.ActorID.String(), resp.ID)
	s.Equal("clinician", resp.Role)
	s.Equal("pending", resp.VerificationStatus)
	s.False(resp.Disabled)
}

func (s *ActorsHandlerSuite) TestRegister_EmptyName() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/actors", registerRequest{})
	rr := testutil.DoRequest(s.router, s.as("clinician-token", req))

	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
}

func (s *ActorsHandlerSuite) TestRegister_Twice() {
	s.register("clinician-token", "Dr. Osei")

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/actors", registerRequest{Name: "Dr. Osei"})
	rr := testutil.DoRequest(s.router, s.as("clinician-token", req))

	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
}

func (s *ActorsHandlerSuite) TestVerify() {
	s.register("clinician-token", "Dr. Osei")

	req := testutil.NewRequest(s.T(), http.MethodPost, "/actors/"+s.clinician.ActorID.String()+"/verify")
	rr := testutil.DoRequest(s.router, s.as("admin-token", req))

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[actorResponse](s.T(), rr)
	s.Equal("verified", resp.VerificationStatus)
}

func (s *ActorsHandlerSuite) TestReject_DisablesActor() {
	s.register("clinician-token", "Dr. Osei")

	req := testutil.NewRequest(s.T(), http.MethodPost, "/actors/"+s.clinician.ActorID.String()+"/reject")
	rr := testutil.DoRequest(s.router, s.as("admin-token", req))

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[actorResponse](s.T(), rr)
	s.Equal("rejected", resp.VerificationStatus)
	s.True(resp.Disabled)
}

func (s *ActorsHandlerSuite) TestVerify_NonAdmin() {
	s.register("clinician-token", "Dr. Osei")

	req := testutil.NewRequest(s.T(), http.MethodPost, "/actors/"+s.clinician.ActorID.String()+"/verify")
	rr := testutil.DoRequest(s.router, s.as("clinician-token", req))

	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
}

func (s *ActorsHandlerSuite) TestVerify_UnknownActor() {
	req := testutil.NewRequest(s.T(), http.MethodPost, "/actors/"+domain.NewActorID().String()+"/verify")
	rr := testutil.DoRequest(s.router, s.as("admin-token", req))

	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
}

func (s *ActorsHandlerSuite) TestList_AdminOnly() {
	s.register("clinician-token", "Dr. Osei")

	req := testutil.NewRequest(s.T(), http.MethodGet, "/actors")
	rr := testutil.DoRequest(s.router, s.as("admin-token", req))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[listActorsResponse](s.T(), rr)
	s.Len(resp.Actors, 1)

	rr = testutil.DoRequest(s.router, s.as("clinician-token", testutil.NewRequest(s.T(), http.MethodGet, "/actors")))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
}

func (s *ActorsHandlerSuite) TestMissingToken() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/actors")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
}
