// Command cass-memory is a local, agent-neutral knowledge-curation engine:
// it turns AI coding-assistant session history into a curated, self-
// pruning playbook of workflow rules and anti-patterns.
package main

func main() {
	Execute()
}
