// Package client is a small HTTP client for the tabwarden daemon API, used
// by the CLI timer commands.
//
//	c, err := client.NewClient("127.0.0.1:7420")
//	if err != nil {
//		return err
//	}
//	if err := c.StartTimer("7", 30*time.Second); err != nil {
//		return err
//	}
package client
