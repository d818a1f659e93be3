/*
Package rag implements retrieval augmented generation over a PDF corpus. Ingestion loads
PDF pages, splits them into overlapping chunks and stores their embeddings in a
vectorstore.Store. Queries embed the question, keep the nearest relevant chunks and ask a
chat model to answer from them.
*/
package rag
