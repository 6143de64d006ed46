package retrieval

import "fmt"

// noContextFound is handed to the answer prompt when no retrieval stage
// produced a usable match; the model then answers from general knowledge
// and the job still completes successfully.
const noContextFound = "No relevant context found."

const refinePromptTemplate = `You are an expert search query refiner. A user has submitted a search query.
Your task is to rephrase and expand upon this query to make it more precise and detailed for a vector database search.

Example:
User query: "React forms"
Refined query: "Best practices for building forms in React using libraries like Formik or React Hook Form, including validation and state management."

Example:
User query: "what is kubernetes"
Refined query: "A comprehensive guide to Kubernetes, explaining its core concepts like pods, services, and deployments, and how it's used for container orchestration."

Refined query for user query: "%s"`

const answerPromptTemplate = `You are an expert for local service professionals.
Based on the following context, provide a detailed and helpful solution.
If the context does not contain a solution, state that and then provide
a solution from your general knowledge.

User Query: %s

Context from database:
%s`

func refinePrompt(query string) string {
	return fmt.Sprintf(refinePromptTemplate, query)
}

func answerPrompt(query, context string) string {
	return fmt.Sprintf(answerPromptTemplate, query, context)
}
