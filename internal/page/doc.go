// Package page provides the page-facing bridge API.
//
// Install attaches an API to a window. Every call posts a request message
// carrying a fresh correlation id and waits for the relay's response with
// the same id; calls may overlap freely and complete in any order.
//
//	api, err := page.Install(win, page.DefaultOptions())
//	if err := api.WaitReady(ctx); err != nil {
//	    return err
//	}
//	me, err := api.Tracker.Login(ctx, page.Credentials{
//	    BaseURL:  "https://jira.example.com",
//	    Username: "jdoe",
//	    Password: "token",
//	})
//
// Failures reported by the executor surface as *RequestError.
package page
