package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/content-pipeline/internal/models"
)

// ApprovalLinks are the tokenized URLs sent to the reviewer
type ApprovalLinks struct {
	Preview string
	Approve string
	Reject  string
	Edit    string
}

// LinksFor builds the four approval URLs for a token
func LinksFor(baseURL, token string) ApprovalLinks {
	base := strings.TrimRight(baseURL, "/") + "/approval/" + token
	return ApprovalLinks{
		Preview: base + "/preview",
		Approve: base + "/approve",
		Reject:  base + "/reject",
		Edit:    base + "/edit",
	}
}

var approvalHTML = template.Must(template.New("approval").Parse(`<!DOCTYPE html>
<html><body style="font-family:sans-serif;max-width:640px">
<h2>New blog draft awaiting approval</h2>
<p><strong>{{.Post.Title}}</strong></p>
<p>{{.Post.Excerpt}}</p>
{{if .Post.Keywords}}<p>Keywords: {{range $i, $k := .Post.Keywords}}{{if $i}}, {{end}}{{$k}}{{end}}</p>{{end}}
{{if .Post.SourceURLs}}<p>Sources:</p><ul>{{range .Post.SourceURLs}}<li><a href="{{.}}">{{.}}</a></li>{{end}}</ul>{{end}}
<p>
<a href="{{.Links.Preview}}">Preview</a> |
<a href="{{.Links.Approve}}">Approve</a> |
<a href="{{.Links.Reject}}">Reject</a> |
<a href="{{.Links.Edit}}">Edit</a>
</p>
</body></html>`))

// ApprovalMessage builds the reviewer email for a pending post
func ApprovalMessage(post *models.BlogPost, links ApprovalLinks, to string) (Message, error) {
	var html bytes.Buffer
	if err := approvalHTML.Execute(&html, struct {
		Post  *models.BlogPost
		Links ApprovalLinks
	}{post, links}); err != nil {
		return Message{}, fmt.Errorf("failed to render approval email: %w", err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "New blog draft awaiting approval\n\n%s\n\n%s\n\n", post.Title, post.Excerpt)
	if len(post.SourceURLs) > 0 {
		text.WriteString("Sources:\n")
		for _, u := range post.SourceURLs {
			fmt.Fprintf(&text, "- %s\n", u)
		}
		text.WriteString("\n")
	}
	fmt.Fprintf(&text, "Preview: %s\nApprove: %s\nReject: %s\nEdit: %s\n",
		links.Preview, links.Approve, links.Reject, links.Edit)

	return Message{
		To:      to,
		Subject: "Blog draft for approval: " + post.Title,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}
