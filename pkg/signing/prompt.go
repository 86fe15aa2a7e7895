package signing

import "fmt"

// Schema selects the response format requested from the model.
type Schema string

const (
	SchemaJSON Schema = "json"
	// SchemaBlock is the older line-oriented SIGNATURE_BLOCK format.
	SchemaBlock Schema = "block"
)

const locationTemperature = 0.7

const locationMaxTokens = 1000

const systemPreamble = `You are a legal expert analyzing contracts for signature placements.
Identify locations where signatures should be placed, considering:
1. Standard signature blocks
2. Witness signature areas
3. Notary sections
4. Initial blocks
5. Date fields
`

const blockInstructions = `
Format your response exactly like this:
SIGNATURE_BLOCK:
- Role: [who signs here, e.g. Tenant, Landlord, Witness]
- Position: [description of where this should be placed]
- Anchor Text: [exact text that appears just before or around where signature should go]
- Context: [broader paragraph or section containing the anchor text]
- Additional Fields: [list any additional fields needed, like date, title, etc.]
- Is Primary: [true if this is the party's main signature, otherwise false]`

const jsonInstructions = `
Respond with a JSON array and nothing else. Each element must be an object with:
  "role": who signs here (e.g. "Tenant", "Witness"),
  "anchor_text": exact text from the contract that appears just before the signature line,
  "context": the sentence or line that contains the anchor text,
  "additional_fields": array of extra fields needed, like "Date" or "Title",
  "is_primary": true for the party's main signature, otherwise false.
Copy anchor_text verbatim from the contract. Return [] if there are no signature locations.`

// BuildLocationPrompt returns the system and user messages for schema.
func BuildLocationPrompt(contractText string, schema Schema) (system, user string) {
	system = systemPreamble
	if schema == SchemaBlock {
		system += blockInstructions
	} else {
		system += jsonInstructions
	}
	user = fmt.Sprintf("Analyze this contract and identify all signature locations:\n\n%s", contractText)
	return system, user
}
