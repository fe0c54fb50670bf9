package rag

import (
	"fmt"
	"strings"

	"veille-rag-api/internal/domain/entity"
)

// SystemPromptRAG 生成回答的系统指令。
// 面向银行监管情报场景，强制引用来源、禁止编造。
const SystemPromptRAG = `Tu es un assistant expert en veille réglementaire et bancaire, spécialisé pour CIH Bank (Maroc).
Tu es utilisé par les équipes Conformité, Risques et Direction Générale de la banque.

MISSION : Répondre de manière précise, structurée et professionnelle en t'appuyant UNIQUEMENT sur les documents fournis.

RÈGLES STRICTES :
1. NE JAMAIS inventer d'information. Si le contexte ne contient pas la réponse, dis clairement : "Les documents disponibles ne contiennent pas cette information."
2. TOUJOURS citer tes sources avec le format [Source: titre du document].
3. Répondre en FRANÇAIS, dans un style professionnel adapté au secteur bancaire.
4. Pour la réglementation : mentionner les références précises (numéros de circulaires, articles de loi, dates d'application).
5. Structurer la réponse avec des titres et des puces si la question est complexe.
6. Terminer par une SYNTHÈSE de 1 à 2 phrases résumant les points clés.
7. Si plusieurs documents apportent des informations complémentaires, croiser les données pour une réponse complète.
8. Mentionner les implications concrètes pour CIH Bank quand c'est pertinent.

FORMAT DE RÉPONSE :
- Utiliser des paragraphes courts et clairs
- Utiliser des listes à puces pour les énumérations
- Mettre en évidence les dates, montants et seuils importants
- Citer les sources entre crochets après chaque affirmation`

const promptSeparator = "═══════════════════════════════════════"

// BuildRagPrompt 构建带编号来源标注的问答 prompt
func BuildRagPrompt(question string, contextChunks []string, sources []entity.Source) string {
	parts := make([]string, 0, len(contextChunks))
	for i, chunk := range contextChunks {
		title := fmt.Sprintf("Document %d", i+1)
		url := ""
		if i < len(sources) {
			if sources[i].Title != "" {
				title = sources[i].Title
			}
			url = sources[i].URL
		}
		parts = append(parts, fmt.Sprintf("[Document %d: %s]\nURL: %s\n%s", i+1, title, url, chunk))
	}

	contextStr := strings.Join(parts, "\n\n---\n\n")

	return fmt.Sprintf(`Question de l'utilisateur : %s

%s
CONTEXTE DOCUMENTAIRE (%d documents de veille CIH Bank)
%s

%s

%s
INSTRUCTIONS
%s

1. Analyse attentivement TOUS les documents ci-dessus.
2. Réponds à la question en t'appuyant EXCLUSIVEMENT sur ces documents.
3. Cite chaque source utilisée avec le format [Source: titre du document].
4. Si les documents ne permettent pas de répondre complètement, indique-le clairement.
5. Termine par une synthèse courte (1-2 phrases).`,
		question,
		promptSeparator, len(contextChunks), promptSeparator,
		contextStr,
		promptSeparator, promptSeparator,
	)
}

// BuildChatPrompt 构建对话式问答 prompt，上下文来自混合检索结果
func BuildChatPrompt(question string, contextTexts []string) string {
	joined := strings.Join(contextTexts, "\n\n---\n\n")
	return fmt.Sprintf(`Question de l'utilisateur : %s

Contexte documentaire :

%s

---

Réponds à la question en t'appuyant EXCLUSIVEMENT sur les documents ci-dessus.
Cite les sources utilisées avec le format [Source: titre].
Si les documents ne permettent pas de répondre, indique-le clairement.`,
		question, joined)
}
