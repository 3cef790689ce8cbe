package tplregistry

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	buildKeywords  = regexp.MustCompile(`(?i)build|compile|package`)
	testKeywords   = regexp.MustCompile(`(?i)test|check|validate`)
	deployKeywords = regexp.MustCompile(`(?i)deploy|publish|release`)
	dockerKeywords = regexp.MustCompile(`(?i)docker|container`)
)

// GenerateJenkinsfile is a cosmetic scaffolder: it produces a syntactically
// valid Jenkinsfile whose stage set is derived from keyword matches in
// description. It is not required to be semantically intelligent (§4.3).
func GenerateJenkinsfile(name, description, agent string, envVars []string) string {
	if agent == "" {
		agent = "any"
	}

	var stages []string
	if buildKeywords.MatchString(description) {
		stages = append(stages, stage("Build", `echo "Building `+name+`"`))
	}
	if testKeywords.MatchString(description) {
		stages = append(stages, stage("Test", `echo "Testing `+name+`"`))
	}
	if dockerKeywords.MatchString(description) {
		stages = append(stages, stage("Docker", `echo "Building container image for `+name+`"`))
	}
	if deployKeywords.MatchString(description) {
		stages = append(stages, stage("Deploy", `echo "Deploying `+name+`"`))
	}
	if len(stages) == 0 {
		stages = append(stages, stage("Run", `echo "Running `+name+`"`))
	}

	var env strings.Builder
	if len(envVars) > 0 {
		env.WriteString("    environment {\n")
		for _, v := range envVars {
			k, val := splitEnvVar(v)
			env.WriteString(fmt.Sprintf("        %s = %q\n", k, val))
		}
		env.WriteString("    }\n")
	}

	return fmt.Sprintf("// Description: %s\npipeline {\n    agent %s\n%s    stages {\n%s    }\n}\n",
		description, agent, env.String(), strings.Join(stages, ""))
}

func stage(name, body string) string {
	return fmt.Sprintf("    stage('%s') {\n        steps {\n            sh '%s'\n        }\n    }\n", name, body)
}

func splitEnvVar(v string) (string, string) {
	if idx := strings.Index(v, "="); idx >= 0 {
		return v[:idx], v[idx+1:]
	}
	return v, ""
}
