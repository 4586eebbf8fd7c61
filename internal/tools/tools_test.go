package tools

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Name
		wantErr bool
	}{
		{"list_github_repos", ListGitHubRepos, false},
		{"create_github_issue", CreateGitHubIssue, false},
		{"send_gmail", SendGmail, false},
		{"delete_repo", "", true},
		{"", "", true},
		{"List_GitHub_Repos", "", true}, // names are case-sensitive
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDeclarationsCoverAll(t *testing.T) {
	decls := Declarations()
	names := All()
	if len(decls) != len(names) {
		t.Fatalf("Declarations() has %d entries, All() has %d", len(decls), len(names))
	}
	for i, want := range names {
		if decls[i].Name != want {
			t.Errorf("Declarations()[%d].Name = %q, want %q", i, decls[i].Name, want)
		}
	}
}

func TestDeclarationsSchemas(t *testing.T) {
	for _, decl := range Declarations() {
		if decl.Description == "" {
			t.Errorf("%s: empty description", decl.Name)
		}
		if got := decl.Parameters["type"]; got != "object" {
			t.Errorf("%s: parameters type = %v, want object", decl.Name, got)
		}
		props, ok := decl.Parameters["properties"].(map[string]any)
		if !ok {
			t.Errorf("%s: properties missing or wrong type", decl.Name)
			continue
		}
		required, _ := decl.Parameters["required"].([]string)
		for _, name := range required {
			if _, ok := props[name]; !ok {
				t.Errorf("%s: required property %q not declared", decl.Name, name)
			}
		}
	}
}
