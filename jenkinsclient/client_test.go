package jenkinsclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"
)

type Suite struct {
	mux    *http.ServeMux
	server *httptest.Server

	suite.Suite
}

func (s *Suite) SetupTest() {
	s.mux = http.NewServeMux()
	s.server = httptest.NewServer(s.mux)
}

func (s *Suite) TearDownTest() {
	s.server.Close()
}

func TestSuite(t *testing.T) {
	suite.Run(t, new(Suite))
}

func (s *Suite) addCrumbHandler() {
	s.mux.HandleFunc(crumbPath, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"crumb":"crumb","crumbRequestField":"Jenkins-Crumb"}`))
	})
}

func (s *Suite) TestConnectSucceeds() {
	s.mux.HandleFunc("/api/json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	c := New(s.server.URL)
	err := c.Connect(context.Background())
	s.NoError(err)
}

func (s *Suite) TestConnectFailsWhenIdentityCheckFails() {
	c := New(s.server.URL + "/does-not-exist")

	err := c.Connect(context.Background())
	s.Error(err)
}

func (s *Suite) TestJobExists() {
	s.mux.HandleFunc("/job/demo/api/json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"demo"}`))
	})

	c := New(s.server.URL)
	ok, err := c.JobExists(context.Background(), "demo")
	s.NoError(err)
	s.True(ok)
}

func (s *Suite) TestJobExistsFalseOn404() {
	c := New(s.server.URL)
	ok, err := c.JobExists(context.Background(), "missing")
	s.NoError(err)
	s.False(ok)
}

func (s *Suite) TestDeleteJobIfExistsNoOpWhenAbsent() {
	c := New(s.server.URL)
	removed, err := c.DeleteJobIfExists(context.Background(), "missing")
	s.NoError(err)
	s.False(removed)
}

func (s *Suite) TestDeleteJobIfExistsDeletesWhenPresent() {
	s.mux.HandleFunc("/job/demo/api/json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"demo"}`))
	})
	s.addCrumbHandler()
	deleted := false
	s.mux.HandleFunc("/job/demo/doDelete", func(w http.ResponseWriter, r *http.Request) {
		deleted = true
		_, _ = w.Write([]byte(`ok`))
	})

	c := New(s.server.URL)
	removed, err := c.DeleteJobIfExists(context.Background(), "demo")
	s.NoError(err)
	s.True(removed)
	s.True(deleted)
}

func (s *Suite) TestCreateJobPostsConfig() {
	s.addCrumbHandler()
	var gotBody string
	s.mux.HandleFunc("/createItem", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte(`ok`))
	})

	c := New(s.server.URL)
	err := c.CreateJob(context.Background(), "demo", "pipeline { stages { } }")
	s.NoError(err)
	s.Contains(gotBody, "CpsFlowDefinition")
}

func (s *Suite) TestStartJobReturnsStartedOnQueueResolution() {
	s.addCrumbHandler()
	s.mux.HandleFunc("/job/demo/build", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", s.server.URL+"/queue/item/42/")
		w.WriteHeader(http.StatusCreated)
	})
	s.mux.HandleFunc("/queue/item/42/api/json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"executable":{"number":7}}`))
	})

	c := New(s.server.URL)
	result, err := c.StartJob(context.Background(), "demo", nil)
	s.NoError(err)
	s.Equal("started", result.Status)
	s.Equal(7, result.BuildNumber)
}

func (s *Suite) TestStreamConsoleCompletesOnFinish() {
	s.mux.HandleFunc("/job/demo/9/api/json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"building":false,"result":"SUCCESS"}`))
	})
	s.mux.HandleFunc("/job/demo/9/logText/progressiveText", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Text-Size", "11")
		_, _ = w.Write([]byte("build done\n"))
	})

	c := New(s.server.URL)
	result, err := c.StreamConsole(context.Background(), "demo", 9)
	s.NoError(err)
	s.True(result.Complete)
	s.Equal("SUCCESS", result.Status)
	s.Contains(result.ConsoleOutput, "build done")
}
