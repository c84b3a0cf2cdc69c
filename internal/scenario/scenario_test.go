package scenario

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chosenoffset/obsplot/pkg/obsplot"
)

func TestScenariosAgainstWidget(t *testing.T) {
	w, err := obsplot.NewWidget(nil)
	require.NoError(t, err)
	ts := httptest.NewServer(w.Handler())
	defer ts.Close()
	defer w.Stop()

	scenarios := All(rand.New(rand.NewSource(1)))
	require.NotEmpty(t, scenarios)
	for _, sc := range scenarios {
		t.Run(sc.Name(), func(t *testing.T) {
			for i := 0; i < 5; i++ {
				require.NoError(t, sc.Run(context.Background(), ts.Client(), ts.URL))
			}
			assert.Contains(t, w.HTML(), obsplot.PlotClass)
		})
	}
}

func TestScenarioReportsUnexpectedStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer ts.Close()

	err := All(rand.New(rand.NewSource(1)))[0].Run(context.Background(), ts.Client(), ts.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got status 418")
}
