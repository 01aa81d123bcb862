package client_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quizzy-go-api/internal/client"
	"github.com/noah-isme/quizzy-go-api/pkg/identity"
)

func newLogin(provider *fakeProvider) *client.LoginViewModel {
	return client.NewLoginViewModel(client.NewAuthRepository(provider, "", zerolog.Nop()), zerolog.Nop())
}

func TestLoginRejectsBlankFieldsWithoutCalls(t *testing.T) {
	cases := []struct {
		name      string
		schoolID  string
		studentID string
	}{
		{name: "empty school", schoolID: "", studentID: "S-001"},
		{name: "empty student", schoolID: "SCH-9", studentID: ""},
		{name: "whitespace school", schoolID: "   ", studentID: "S-001"},
		{name: "both empty"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider := newFakeProvider()
			login := newLogin(provider)
			login.SetSchoolID(tc.schoolID)
			login.SetStudentID(tc.studentID)

			state := login.SignIn(context.Background())
			require.Equal(t, client.AuthFailed, state.Kind)
			require.Equal(t, client.MissingFieldsMessage, state.Message)
			require.Zero(t, provider.calls())
		})
	}
}

func TestLoginSignsInExistingAccount(t *testing.T) {
	provider := newFakeProvider()
	login := newLogin(provider)
	login.SetSchoolID("SCH-9")
	login.SetStudentID("S-001")

	ch, cancel := login.Subscribe()
	defer cancel()
	require.Equal(t, client.AuthUnauthenticated, (<-ch).Kind)

	state := login.SignIn(context.Background())
	require.Equal(t, client.AuthAuthenticated, state.Kind)
	require.Equal(t, "S-001@SCH-9.school.com", provider.lastEmail)
	require.Equal(t, "Student@123", provider.lastPass)
	require.Equal(t, 0, provider.createCalls)
	require.Equal(t, client.AuthAuthenticated, (<-ch).Kind)
}

func TestLoginCreatesAccountWhenSignInRefused(t *testing.T) {
	provider := newFakeProvider()
	provider.signInErr = errors.New("INVALID_LOGIN_CREDENTIALS")
	login := newLogin(provider)
	login.SetSchoolID("SCH-9")
	login.SetStudentID("S-002")

	state := login.SignIn(context.Background())
	require.Equal(t, client.AuthAuthenticated, state.Kind)
	require.Equal(t, 1, provider.signInCalls)
	require.Equal(t, 1, provider.createCalls)
}

func TestLoginSurfacesProviderMessage(t *testing.T) {
	provider := newFakeProvider()
	provider.signInErr = errors.New("INVALID_LOGIN_CREDENTIALS")
	provider.createErr = &identity.Error{Status: 400, Message: "EMAIL_EXISTS"}
	login := newLogin(provider)
	login.SetSchoolID("SCH-9")
	login.SetStudentID("S-003")

	state := login.SignIn(context.Background())
	require.Equal(t, client.AuthFailed, state.Kind)
	require.Equal(t, "EMAIL_EXISTS", state.Message)

	provider.createErr = emptyError{}
	state = login.SignIn(context.Background())
	require.Equal(t, client.SignInFailedMessage, state.Message)
}

func TestLoginFieldEditClearsFailure(t *testing.T) {
	login := newLogin(newFakeProvider())
	require.Equal(t, client.AuthFailed, login.SignIn(context.Background()).Kind)

	login.SetSchoolID("SCH-9")
	require.Equal(t, client.AuthUnauthenticated, login.State().Kind)

	require.Equal(t, client.AuthFailed, login.SignIn(context.Background()).Kind)
	login.ClearError()
	require.Equal(t, client.AuthUnauthenticated, login.State().Kind)

	login.ClearError()
	require.Equal(t, client.AuthUnauthenticated, login.State().Kind)
}

type blockingAuth struct {
	release chan struct{}
	started chan struct{}
	calls   int
}

func (a *blockingAuth) SignIn(ctx context.Context, _, _ string) (identity.User, error) {
	a.calls++
	a.started <- struct{}{}
	select {
	case <-a.release:
		return identity.User{LocalID: "1"}, nil
	case <-ctx.Done():
		return identity.User{}, ctx.Err()
	}
}

func (a *blockingAuth) IsAuthenticated() bool { return false }

func TestLoginIgnoresSignInWhileLoading(t *testing.T) {
	auth := &blockingAuth{release: make(chan struct{}), started: make(chan struct{}, 2)}
	login := client.NewLoginViewModel(auth, zerolog.Nop())
	login.SetSchoolID("SCH-9")
	login.SetStudentID("S-004")

	result := make(chan client.AuthState, 1)
	go func() { result <- login.SignIn(context.Background()) }()
	<-auth.started

	duplicate := login.SignIn(context.Background())
	require.Equal(t, client.AuthLoading, duplicate.Kind)

	close(auth.release)
	select {
	case state := <-result:
		require.Equal(t, client.AuthAuthenticated, state.Kind)
	case <-time.After(time.Second):
		t.Fatal("sign-in did not finish")
	}
	require.Equal(t, 1, auth.calls)
}

func TestLoginStartsAuthenticatedAndFollowsSessionChanges(t *testing.T) {
	provider := newFakeProvider()
	provider.user = &identity.User{LocalID: "1"}
	login := newLogin(provider)
	require.Equal(t, client.AuthAuthenticated, login.State().Kind)

	login.SetStudentID("edit")
	require.Equal(t, client.AuthAuthenticated, login.State().Kind)

	login.OnSessionChanged(false)
	require.Equal(t, client.AuthUnauthenticated, login.State().Kind)

	login.OnSessionChanged(true)
	require.Equal(t, client.AuthAuthenticated, login.State().Kind)
}

func TestLoginFollowLeavesAuthenticatedOnSignOut(t *testing.T) {
	provider := newFakeProvider()
	repo := client.NewAuthRepository(provider, "", zerolog.Nop())
	login := client.NewLoginViewModel(repo, zerolog.Nop())
	defer login.Close()

	login.SetSchoolID("SCH-9")
	login.SetStudentID("S-001")
	require.Equal(t, client.AuthAuthenticated, login.SignIn(context.Background()).Kind)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		login.Follow(ctx, repo.SessionChanges(ctx))
	}()

	states, cancelStates := login.Subscribe()
	defer cancelStates()
	require.Equal(t, client.AuthAuthenticated, (<-states).Kind)

	require.NoError(t, repo.SignOut(context.Background()))

	select {
	case state := <-states:
		require.Equal(t, client.AuthUnauthenticated, state.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected unauthenticated after sign-out")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("follow did not return after cancel")
	}
}
