package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/cucumber/godog"
	"github.com/google/uuid"

	subjectmodels "leadcrm/internal/subject/models"
)

// RegisterSteps registers all step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Background steps
	ctx.Step(`^the privacy engine is running$`, tc.privacyEngineIsRunning)
	ctx.Step(`^a CRM subject "([^"]*)" with (\d+) leads$`, tc.seedSubject)

	// Consent steps
	ctx.Step(`^I grant "([^"]*)" consent for "([^"]*)"$`, tc.grantConsent)
	ctx.Step(`^I withdraw "([^"]*)" consent for "([^"]*)"$`, tc.withdrawConsent)
	ctx.Step(`^I check "([^"]*)" consent for "([^"]*)"$`, tc.checkConsent)

	// Lifecycle steps
	ctx.Step(`^I submit an? "([^"]*)" request for "([^"]*)"$`, tc.submitRequest)
	ctx.Step(`^I submit an? "([^"]*)" request for "([^"]*)" with strategy "([^"]*)"$`, tc.submitRequestWithStrategy)
	ctx.Step(`^I save the request id$`, tc.saveRequestID)
	ctx.Step(`^I fetch the request status$`, tc.fetchRequestStatus)
	ctx.Step(`^I download the export$`, tc.downloadExport)

	// Generic request steps
	ctx.Step(`^I GET "([^"]*)"$`, tc.getPath)
	ctx.Step(`^I POST to "([^"]*)" with empty body$`, tc.postWithEmptyBody)

	// Assertion steps
	ctx.Step(`^the response status should be (\d+)$`, tc.responseStatusShouldBe)
	ctx.Step(`^the response should contain "([^"]*)"$`, tc.responseShouldContain)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, tc.responseFieldShouldEqual)
	ctx.Step(`^the subject "([^"]*)" should have no CRM records$`, tc.subjectShouldHaveNoRecords)
}

func (tc *TestContext) privacyEngineIsRunning(ctx context.Context) error {
	return nil
}

func (tc *TestContext) seedSubject(ctx context.Context, email string, leads int) error {
	tc.subjects.AddProfile(&subjectmodels.Profile{
		ID:        "prof_" + uuid.New().String(),
		Email:     email,
		FirstName: "Jane",
		LastName:  "Doe",
		Company:   "Acme Corp",
		CreatedAt: time.Now(),
	})
	for i := 0; i < leads; i++ {
		leadID := "lead_" + uuid.New().String()
		tc.subjects.AddLead(&subjectmodels.Lead{
			ID:        leadID,
			Email:     email,
			FirstName: "Jane",
			LastName:  "Doe",
			Status:    "qualified",
			Source:    "webinar",
			CreatedAt: time.Now(),
		})
		tc.subjects.AddTask(&subjectmodels.Task{
			ID:     "task_" + uuid.New().String(),
			LeadID: leadID,
			Title:  fmt.Sprintf("Follow up %d", i+1),
			Status: "open",
		})
	}
	return nil
}

func (tc *TestContext) grantConsent(ctx context.Context, consentType, subject string) error {
	return tc.POST("/v1/privacy/consents", map[string]interface{}{
		"subject": subject,
		"type":    consentType,
		"given":   true,
		"method":  "explicit",
		"context": "e2e scenario",
	})
}

func (tc *TestContext) withdrawConsent(ctx context.Context, consentType, subject string) error {
	return tc.POST("/v1/privacy/consents/withdraw", map[string]interface{}{
		"subject": subject,
		"type":    consentType,
		"reason":  "subject request",
	})
}

func (tc *TestContext) checkConsent(ctx context.Context, consentType, subject string) error {
	return tc.GET(fmt.Sprintf("/v1/privacy/consents/check?subject=%s&type=%s",
		url.QueryEscape(subject), url.QueryEscape(consentType)))
}

func (tc *TestContext) submitRequest(ctx context.Context, kind, subject string) error {
	return tc.POST("/v1/privacy/requests", map[string]interface{}{
		"kind":      kind,
		"subject":   subject,
		"requester": "dpo@leadcrm.example",
	})
}

func (tc *TestContext) submitRequestWithStrategy(ctx context.Context, kind, subject, strategy string) error {
	return tc.POST("/v1/privacy/requests", map[string]interface{}{
		"kind":      kind,
		"subject":   subject,
		"strategy":  strategy,
		"requester": "dpo@leadcrm.example",
	})
}

func (tc *TestContext) saveRequestID(ctx context.Context) error {
	id, err := tc.GetResponseField("request_id")
	if err != nil {
		return err
	}
	tc.RequestID = id.(string)
	return nil
}

func (tc *TestContext) fetchRequestStatus(ctx context.Context) error {
	if tc.RequestID == "" {
		return fmt.Errorf("no request id saved")
	}
	return tc.GET("/v1/privacy/requests/" + tc.RequestID)
}

// downloadExport follows the signed link from the last status response.
// Only the path and token are reused; the host in the link belongs to the
// configured public base URL, not the test server.
func (tc *TestContext) downloadExport(ctx context.Context) error {
	raw, err := tc.GetResponseField("downloadUrl")
	if err != nil {
		return err
	}

	parsed, err := url.Parse(raw.(string))
	if err != nil {
		return fmt.Errorf("invalid download url: %w", err)
	}
	return tc.GET(parsed.Path + "?" + parsed.RawQuery)
}

func (tc *TestContext) getPath(ctx context.Context, path string) error {
	return tc.GET(path)
}

func (tc *TestContext) postWithEmptyBody(ctx context.Context, path string) error {
	return tc.POST(path, map[string]interface{}{})
}

func (tc *TestContext) responseStatusShouldBe(ctx context.Context, expectedStatus int) error {
	if tc.LastResponse == nil {
		return fmt.Errorf("no response recorded")
	}
	if tc.LastResponse.StatusCode != expectedStatus {
		return fmt.Errorf("expected status %d but got %d\nResponse: %s",
			expectedStatus, tc.LastResponse.StatusCode, string(tc.LastResponseBody))
	}
	return nil
}

func (tc *TestContext) responseShouldContain(ctx context.Context, text string) error {
	if !tc.ResponseContains(text) {
		return fmt.Errorf("response does not contain %q\nResponse: %s", text, string(tc.LastResponseBody))
	}
	return nil
}

func (tc *TestContext) responseFieldShouldEqual(ctx context.Context, field, expectedValue string) error {
	var data map[string]interface{}
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	actualValue, ok := data[field]
	if !ok {
		return fmt.Errorf("field %s not found in response", field)
	}

	if fmt.Sprint(actualValue) != expectedValue {
		return fmt.Errorf("field %s: expected %s but got %v", field, expectedValue, actualValue)
	}
	return nil
}

func (tc *TestContext) subjectShouldHaveNoRecords(ctx context.Context, subject string) error {
	g, err := tc.graph.Load(ctx, subject)
	if err != nil {
		return fmt.Errorf("load subject graph: %w", err)
	}
	if !g.Empty() {
		return fmt.Errorf("subject %s still has records: %d leads, %d tasks, profile=%v",
			subject, len(g.Leads), len(g.Tasks), g.Profile != nil)
	}
	return nil
}
